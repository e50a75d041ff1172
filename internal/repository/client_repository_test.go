package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func clientColumns() []string {
	return []string{"id", "full_name", "phone", "address", "language", "active", "created_at", "updated_at"}
}

func TestClientFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows(clientColumns()).
		AddRow("c1", "Aziz Karimov", "+998901234567", "12 Example St", "uz", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, phone, address, language, active, created_at, updated_at FROM clients WHERE id = $1 LIMIT 1")).
		WithArgs("c1").
		WillReturnRows(rows)

	client, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", client.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	mock.ExpectQuery("SELECT .+ FROM clients WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientFindByPhoneDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows(clientColumns()).
		AddRow("c1", "Aziz Karimov", "+998901234567", "", "uz", true, now, now)
	mock.ExpectQuery("SELECT .+ FROM clients WHERE phone").
		WithArgs("+998901234567", "%+998901234567", 5).
		WillReturnRows(rows)

	clients, err := repo.FindByPhone(context.Background(), "+998901234567", 0)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientSearchByNameLowercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows(clientColumns()).
		AddRow("c1", "Aziz Karimov", "+998901234567", "", "uz", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, phone, address, language, active, created_at, updated_at FROM clients WHERE LOWER(full_name) LIKE $1 ORDER BY created_at DESC LIMIT $2")).
		WithArgs("%aziz%", 10).
		WillReturnRows(rows)

	clients, err := repo.SearchByName(context.Background(), "Aziz", 10)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	mock.ExpectExec("INSERT INTO clients").WillReturnResult(sqlmock.NewResult(1, 1))

	client := &models.Client{FullName: "Aziz Karimov", Phone: "+998901234567", Language: "uz", Active: true}
	require.NoError(t, repo.Create(context.Background(), client))
	assert.NotEmpty(t, client.ID)
	assert.False(t, client.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreateDuplicatePhone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	mock.ExpectExec("INSERT INTO clients").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clients_phone_key"})

	err := repo.Create(context.Background(), &models.Client{FullName: "Aziz Karimov", Phone: "+998901234567"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrClientExists.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingQueryObserver struct {
	queries   []string
	durations []time.Duration
}

func (r *recordingQueryObserver) ObserveDBQuery(query string, duration time.Duration) {
	r.queries = append(r.queries, query)
	r.durations = append(r.durations, duration)
}

func TestClientRepositoryObservesQueries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	obs := &recordingQueryObserver{}
	repo := NewClientRepository(db, obs)

	now := time.Now()
	rows := sqlmock.NewRows(clientColumns()).
		AddRow("c1", "Aziz Karimov", "+998901234567", "12 Example St", "uz", true, now, now)
	mock.ExpectQuery("SELECT .+ FROM clients WHERE id").
		WithArgs("c1").
		WillReturnRows(rows)
	mock.ExpectExec("INSERT INTO clients").WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &models.Client{FullName: "Aziz Karimov", Phone: "+998907654321"}))

	assert.Equal(t, []string{"clients_find_by_id", "clients_create"}, obs.queries)
	require.Len(t, obs.durations, 2)
	for _, d := range obs.durations {
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCreateOtherError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClientRepository(db, nil)

	mock.ExpectExec("INSERT INTO clients").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), &models.Client{FullName: "Aziz Karimov", Phone: "+998901234567"})
	require.Error(t, err)
	assert.NotEqual(t, appErrors.ErrClientExists.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

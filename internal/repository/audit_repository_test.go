package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzconnect/operator-console-api/internal/models"
)

func auditColumns() []string {
	return []string{"id", "application_id", "creator_id", "creator_role", "client_id", "application_type", "event_type", "severity", "event_data", "session_id", "created_at"}
}

func TestAuditInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db, nil)

	mock.ExpectExec("INSERT INTO audit_events").WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.AuditEvent{
		CreatorID:   "staff-1",
		CreatorRole: models.RoleJuniorManager,
		EventType:   models.AuditCreationStarted,
		Severity:    models.SeverityInfo,
		EventData:   json.RawMessage(`{"application_type":"connection"}`),
		SessionID:   "sess-1",
	}
	require.NoError(t, repo.Insert(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQueryBySession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db, nil)

	now := time.Now()
	rows := sqlmock.NewRows(auditColumns()).
		AddRow("evt-1", nil, "staff-1", string(models.RoleJuniorManager), nil, nil, string(models.AuditCreationStarted), string(models.SeverityInfo), []byte(`{}`), "sess-1", now).
		AddRow("evt-2", nil, "staff-1", string(models.RoleJuniorManager), nil, nil, string(models.AuditApplicationSubmitted), string(models.SeverityInfo), []byte(`{}`), "sess-1", now)
	mock.ExpectQuery(`SELECT .+ FROM audit_events WHERE 1=1 AND session_id = \$1 ORDER BY created_at ASC, id ASC LIMIT 200`).
		WithArgs("sess-1").
		WillReturnRows(rows)

	events, err := repo.Query(context.Background(), models.AuditFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.AuditCreationStarted, events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQueryAllFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db, nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(auditColumns())
	mock.ExpectQuery(`SELECT .+ FROM audit_events WHERE 1=1 AND session_id = \$1 AND creator_id = \$2 AND event_type = \$3 AND created_at >= \$4 AND created_at <= \$5 ORDER BY created_at ASC, id ASC LIMIT 50`).
		WithArgs("sess-1", "staff-1", models.AuditPermissionDenied, from, to).
		WillReturnRows(rows)

	events, err := repo.Query(context.Background(), models.AuditFilter{
		SessionID: "sess-1",
		CreatorID: "staff-1",
		EventType: models.AuditPermissionDenied,
		From:      &from,
		To:        &to,
		Limit:     50,
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditQueryClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db, nil)

	mock.ExpectQuery(`SELECT .+ FROM audit_events WHERE 1=1 ORDER BY created_at ASC, id ASC LIMIT 200`).
		WillReturnRows(sqlmock.NewRows(auditColumns()))

	_, err := repo.Query(context.Background(), models.AuditFilter{Limit: 5000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// ClientRepository provides database access for customer records.
type ClientRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewClientRepository creates a new instance of ClientRepository.
func NewClientRepository(db *sqlx.DB, metrics QueryObserver) *ClientRepository {
	return &ClientRepository{db: db, metrics: metrics}
}

// FindByID returns a client by identifier.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	defer observe(r.metrics, "clients_find_by_id", time.Now())
	const query = `SELECT id, full_name, phone, address, language, active, created_at, updated_at FROM clients WHERE id = $1 LIMIT 1`
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find client by id: %w", err)
	}
	return &client, nil
}

// FindByPhone returns clients whose phone matches exactly or by suffix.
func (r *ClientRepository) FindByPhone(ctx context.Context, phone string, limit int) ([]models.Client, error) {
	defer observe(r.metrics, "clients_find_by_phone", time.Now())
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	const query = `SELECT id, full_name, phone, address, language, active, created_at, updated_at FROM clients WHERE phone = $1 OR phone LIKE $2 ORDER BY phone = $1 DESC, created_at DESC LIMIT $3`
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, phone, "%"+phone, limit); err != nil {
		return nil, fmt.Errorf("find clients by phone: %w", err)
	}
	return clients, nil
}

// SearchByName returns clients whose name contains the given substring.
func (r *ClientRepository) SearchByName(ctx context.Context, name string, limit int) ([]models.Client, error) {
	defer observe(r.metrics, "clients_search_by_name", time.Now())
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	const query = `SELECT id, full_name, phone, address, language, active, created_at, updated_at FROM clients WHERE LOWER(full_name) LIKE $1 ORDER BY created_at DESC LIMIT $2`
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, "%"+strings.ToLower(name)+"%", limit); err != nil {
		return nil, fmt.Errorf("search clients by name: %w", err)
	}
	return clients, nil
}

// Create inserts a new client. Phone uniqueness is enforced by the database;
// a constraint violation surfaces as ErrClientExists so that two concurrent
// creations with the same phone never produce duplicate rows.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	defer observe(r.metrics, "clients_create", time.Now())
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	const query = `INSERT INTO clients (id, full_name, phone, address, language, active, created_at, updated_at) VALUES (:id, :full_name, :phone, :address, :language, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrClientExists, "")
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzconnect/operator-console-api/internal/models"
)

// ApplicationRepository provides database access for requests and their
// status history.
type ApplicationRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewApplicationRepository creates a new instance of ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB, metrics QueryObserver) *ApplicationRepository {
	return &ApplicationRepository{db: db, metrics: metrics}
}

// Create inserts a new application row.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	defer observe(r.metrics, "applications_create", time.Now())
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	const query = `INSERT INTO applications (id, type, status, creator_id, creator_role, client_id, description, location, priority, assignee_id, created_at, assigned_at, completed_at, updated_at) VALUES (:id, :type, :status, :creator_id, :creator_role, :client_id, :description, :location, :priority, :assignee_id, :created_at, :assigned_at, :completed_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	defer observe(r.metrics, "applications_find_by_id", time.Now())
	const query = `SELECT id, type, status, creator_id, creator_role, client_id, description, location, priority, assignee_id, created_at, assigned_at, completed_at, updated_at FROM applications WHERE id = $1 LIMIT 1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return &app, nil
}

// UpdateStatus persists a status change together with the timestamps the
// transition carries.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, app *models.Application) error {
	defer observe(r.metrics, "applications_update_status", time.Now())
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET status = :status, assignee_id = :assignee_id, assigned_at = :assigned_at, completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}

// InsertStatusLog appends a status-change record.
func (r *ApplicationRepository) InsertStatusLog(ctx context.Context, log *models.StatusLog) error {
	defer observe(r.metrics, "status_logs_insert", time.Now())
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_logs (id, application_id, from_status, to_status, action, actor_id, actor_role, created_at) VALUES (:id, :application_id, :from_status, :to_status, :action, :actor_id, :actor_role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return nil
}

// CountCreatedSince returns how many applications the creator filed at or
// after the given instant. Used for the per-day creation quota.
func (r *ApplicationRepository) CountCreatedSince(ctx context.Context, creatorID string, since time.Time) (int, error) {
	defer observe(r.metrics, "applications_count_created_since", time.Now())
	const query = `SELECT COUNT(*) FROM applications WHERE creator_id = $1 AND created_at >= $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, creatorID, since); err != nil {
		return 0, fmt.Errorf("count applications since: %w", err)
	}
	return count, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uzconnect/operator-console-api/internal/models"
)

// AuditRepository provides database access for the append-only audit log.
type AuditRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB, metrics QueryObserver) *AuditRepository {
	return &AuditRepository{db: db, metrics: metrics}
}

// Insert appends one audit event. Events are never updated or deleted here;
// retention is an external concern.
func (r *AuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	defer observe(r.metrics, "audit_events_insert", time.Now())
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_events (id, application_id, creator_id, creator_role, client_id, application_type, event_type, severity, event_data, session_id, created_at) VALUES (:id, :application_id, :creator_id, :creator_role, :client_id, :application_type, :event_type, :severity, :event_data, :session_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns audit events matching the filter, oldest first so a session
// trail reads in the order the events were recorded.
func (r *AuditRepository) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	defer observe(r.metrics, "audit_events_query", time.Now())
	baseQuery := `SELECT id, application_id, creator_id, creator_role, client_id, application_type, event_type, severity, event_data, session_id, created_at FROM audit_events WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.CreatorID != "" {
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", len(args)+1))
		args = append(args, filter.CreatorID)
	}
	if filter.EventType != "" {
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)+1))
		args = append(args, filter.EventType)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query := fmt.Sprintf("%s ORDER BY created_at ASC, id ASC LIMIT %d", baseQuery, limit)

	var events []models.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return events, nil
}

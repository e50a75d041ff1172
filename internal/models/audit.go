package models

import (
	"encoding/json"
	"time"
)

// AuditEventType enumerates the privileged actions the pipeline records.
type AuditEventType string

const (
	AuditCreationStarted      AuditEventType = "creation_started"
	AuditClientSelected       AuditEventType = "client_selected"
	AuditClientCreated        AuditEventType = "client_created"
	AuditApplicationSubmitted AuditEventType = "application_submitted"
	AuditClientNotified       AuditEventType = "client_notified"
	AuditWorkflowInitiated    AuditEventType = "workflow_initiated"
	AuditPermissionDenied     AuditEventType = "permission_denied"
	AuditValidationFailed     AuditEventType = "validation_failed"
	AuditError                AuditEventType = "error"
	AuditLogin                AuditEventType = "login"
	AuditLogout               AuditEventType = "logout"
)

// AuditSeverity grades an audit event.
type AuditSeverity string

const (
	SeverityInfo    AuditSeverity = "info"
	SeverityWarning AuditSeverity = "warning"
	SeverityError   AuditSeverity = "error"
)

// AuditEvent is an immutable record of one privileged action. EventData is
// stored sanitized; raw free text and identity fields never reach storage.
type AuditEvent struct {
	ID              string           `db:"id" json:"id"`
	ApplicationID   *string          `db:"application_id" json:"application_id,omitempty"`
	CreatorID       string           `db:"creator_id" json:"creator_id"`
	CreatorRole     StaffRole        `db:"creator_role" json:"creator_role"`
	ClientID        *string          `db:"client_id" json:"client_id,omitempty"`
	ApplicationType *ApplicationType `db:"application_type" json:"application_type,omitempty"`
	EventType       AuditEventType   `db:"event_type" json:"event_type"`
	Severity        AuditSeverity    `db:"severity" json:"severity"`
	EventData       json.RawMessage  `db:"event_data" json:"event_data,omitempty"`
	SessionID       string           `db:"session_id" json:"session_id"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// AuditFilter constrains audit event queries.
type AuditFilter struct {
	SessionID string
	CreatorID string
	EventType AuditEventType
	From      *time.Time
	To        *time.Time
	Limit     int
}

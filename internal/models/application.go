package models

import "time"

// ApplicationType enumerates the request kinds staff may file.
type ApplicationType string

const (
	TypeConnection       ApplicationType = "CONNECTION"
	TypeTechnicalService ApplicationType = "TECHNICAL_SERVICE"
)

// ApplicationStatus captures the workflow states of a request.
type ApplicationStatus string

const (
	StatusNew             ApplicationStatus = "NEW"
	StatusPending         ApplicationStatus = "PENDING"
	StatusConfirmed       ApplicationStatus = "CONFIRMED"
	StatusAssigned        ApplicationStatus = "ASSIGNED"
	StatusInProgress      ApplicationStatus = "IN_PROGRESS"
	StatusReadyForInstall ApplicationStatus = "READY_FOR_INSTALLATION"
	StatusCompleted       ApplicationStatus = "COMPLETED"
	StatusCancelled       ApplicationStatus = "CANCELLED"
)

// IsTerminal reports whether no further workflow action can apply.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// WorkflowAction enumerates role-gated operations on a request.
type WorkflowAction string

const (
	ActionReview             WorkflowAction = "review"
	ActionConfirm            WorkflowAction = "confirm"
	ActionAssignToTechnician WorkflowAction = "assign_to_technician"
	ActionConfirmMaterials   WorkflowAction = "confirm_materials"
	ActionStartWork          WorkflowAction = "start_work"
	ActionMarkReady          WorkflowAction = "mark_ready"
	ActionComplete           WorkflowAction = "complete"
	ActionCancel             WorkflowAction = "cancel"
)

// Application is the durable unit of work tracked through the workflow.
type Application struct {
	ID          string            `db:"id" json:"id"`
	Type        ApplicationType   `db:"type" json:"type"`
	Status      ApplicationStatus `db:"status" json:"status"`
	CreatorID   string            `db:"creator_id" json:"creator_id"`
	CreatorRole StaffRole         `db:"creator_role" json:"creator_role"`
	ClientID    string            `db:"client_id" json:"client_id"`
	Description string            `db:"description" json:"description"`
	Location    string            `db:"location" json:"location"`
	Priority    string            `db:"priority" json:"priority"`
	AssigneeID  *string           `db:"assignee_id" json:"assignee_id,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	AssignedAt  *time.Time        `db:"assigned_at" json:"assigned_at,omitempty"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// StatusLog records a single workflow transition of an application.
type StatusLog struct {
	ID            string            `db:"id" json:"id"`
	ApplicationID string            `db:"application_id" json:"application_id"`
	FromStatus    ApplicationStatus `db:"from_status" json:"from_status"`
	ToStatus      ApplicationStatus `db:"to_status" json:"to_status"`
	Action        WorkflowAction    `db:"action" json:"action"`
	ActorID       string            `db:"actor_id" json:"actor_id"`
	ActorRole     StaffRole         `db:"actor_role" json:"actor_role"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

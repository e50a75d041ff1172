package models

import "time"

// SessionStep identifies where a creation session is in its flow.
type SessionStep string

const (
	StepSelectingClient     SessionStep = "selecting_client"
	StepEnteringDescription SessionStep = "entering_description"
	StepEnteringAddress     SessionStep = "entering_address"
	StepReviewing           SessionStep = "reviewing"
	StepSubmitting          SessionStep = "submitting"
	StepSubmitted           SessionStep = "submitted"
	StepCancelled           SessionStep = "cancelled"
)

// IsTerminal reports whether the session can no longer change.
func (s SessionStep) IsTerminal() bool {
	return s == StepSubmitted || s == StepCancelled
}

// CreatorContext snapshots who opened a session and under what decision.
type CreatorContext struct {
	CreatorID  string    `json:"creator_id"`
	Role       StaffRole `json:"role"`
	FullName   string    `json:"full_name"`
	DailyCount int       `json:"daily_count"`
	StartedAt  time.Time `json:"started_at"`
	Reason     string    `json:"reason"`
}

// CreationSession holds the in-flight state of one request being created.
// It lives only in the transient session store until submit or cancel.
type CreationSession struct {
	ID           string             `json:"id"`
	Type         ApplicationType    `json:"type"`
	Step         SessionStep        `json:"step"`
	SearchMethod ClientSearchMethod `json:"search_method,omitempty"`
	Client       *Client            `json:"client,omitempty"`
	Description  string             `json:"description"`
	Location     string             `json:"location"`
	Priority     string             `json:"priority"`
	Creator      CreatorContext     `json:"creator"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/internal/notifier"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

type workflowStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	UpdateStatus(ctx context.Context, app *models.Application) error
	InsertStatusLog(ctx context.Context, log *models.StatusLog) error
}

type transitionRule struct {
	next  models.ApplicationStatus
	roles []models.StaffRole
}

// workflowTable is the canonical transition table, keyed by current status
// and action. A transition applies only when the acting role is listed.
var workflowTable = map[models.ApplicationStatus]map[models.WorkflowAction]transitionRule{
	models.StatusNew: {
		models.ActionReview:             {next: models.StatusPending, roles: []models.StaffRole{models.RoleJuniorManager, models.RoleManager}},
		models.ActionConfirm:            {next: models.StatusConfirmed, roles: []models.StaffRole{models.RoleManager}},
		models.ActionAssignToTechnician: {next: models.StatusAssigned, roles: []models.StaffRole{models.RoleController}},
		models.ActionCancel:             {next: models.StatusCancelled, roles: []models.StaffRole{models.RoleManager, models.RoleCallCenter}},
	},
	models.StatusPending: {
		models.ActionConfirm: {next: models.StatusConfirmed, roles: []models.StaffRole{models.RoleManager}},
		models.ActionCancel:  {next: models.StatusCancelled, roles: []models.StaffRole{models.RoleManager, models.RoleCallCenter}},
	},
	models.StatusConfirmed: {
		models.ActionAssignToTechnician: {next: models.StatusAssigned, roles: []models.StaffRole{models.RoleController}},
		models.ActionConfirmMaterials:   {next: models.StatusInProgress, roles: []models.StaffRole{models.RoleWarehouse}},
		models.ActionCancel:             {next: models.StatusCancelled, roles: []models.StaffRole{models.RoleManager}},
	},
	models.StatusAssigned: {
		models.ActionStartWork: {next: models.StatusInProgress, roles: []models.StaffRole{models.RoleTechnician}},
		models.ActionCancel:    {next: models.StatusCancelled, roles: []models.StaffRole{models.RoleManager}},
	},
	models.StatusInProgress: {
		models.ActionMarkReady: {next: models.StatusReadyForInstall, roles: []models.StaffRole{models.RoleTechnician}},
		models.ActionComplete:  {next: models.StatusCompleted, roles: []models.StaffRole{models.RoleTechnician, models.RoleController}},
		models.ActionCancel:    {next: models.StatusCancelled, roles: []models.StaffRole{models.RoleManager}},
	},
	models.StatusReadyForInstall: {
		models.ActionComplete: {next: models.StatusCompleted, roles: []models.StaffRole{models.RoleTechnician, models.RoleController}},
	},
}

// NextStatus resolves the transition table for (current, action, role). The
// second return is false when the combination is illegal: not an error, the
// caller surfaces it as "action not permitted at this stage".
func NextStatus(current models.ApplicationStatus, action models.WorkflowAction, role models.StaffRole) (models.ApplicationStatus, bool) {
	rule, ok := workflowTable[current][action]
	if !ok {
		return "", false
	}
	for _, r := range rule.roles {
		if r == role {
			return rule.next, true
		}
	}
	return "", false
}

// AdvanceParams carries one workflow action request.
type AdvanceParams struct {
	ApplicationID string
	Action        models.WorkflowAction
	ActorID       string
	ActorRole     models.StaffRole
	AssigneeID    string
}

// WorkflowService applies role-gated status transitions to applications.
type WorkflowService struct {
	repo     workflowStore
	audit    *AuditPipeline
	notifier notifier.Notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewWorkflowService constructs a workflow service.
func NewWorkflowService(repo workflowStore, audit *AuditPipeline, n notifier.Notifier, metrics *MetricsService, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = notifier.Noop{}
	}
	return &WorkflowService{repo: repo, audit: audit, notifier: n, metrics: metrics, logger: logger}
}

// Advance applies one action to an application. On success the new status is
// persisted and a status-change record appended; the first transition out of
// NEW additionally emits a workflow-initiated audit event referencing it.
func (s *WorkflowService) Advance(ctx context.Context, params AdvanceParams) (*models.Application, *models.StatusLog, error) {
	app, err := s.repo.FindByID(ctx, params.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	next, ok := NextStatus(app.Status, params.Action, params.ActorRole)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNoTransition, fmt.Sprintf("action %s not permitted for %s at status %s", params.Action, params.ActorRole, app.Status))
	}

	now := time.Now().UTC()
	previous := app.Status
	prevAssignee := app.AssigneeID
	prevAssignedAt := app.AssignedAt
	prevCompletedAt := app.CompletedAt
	app.Status = next

	switch params.Action {
	case models.ActionAssignToTechnician:
		if params.AssigneeID != "" {
			app.AssigneeID = &params.AssigneeID
		}
		app.AssignedAt = &now
	case models.ActionComplete:
		app.CompletedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, app); err != nil {
		app.Status = previous
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist status change")
	}

	statusLog := &models.StatusLog{
		ApplicationID: app.ID,
		FromStatus:    previous,
		ToStatus:      next,
		Action:        params.Action,
		ActorID:       params.ActorID,
		ActorRole:     params.ActorRole,
		CreatedAt:     now,
	}
	// A transition without its status-change record must not survive: roll
	// the row back so the history stays complete.
	if err := s.repo.InsertStatusLog(ctx, statusLog); err != nil {
		app.Status = previous
		app.AssigneeID = prevAssignee
		app.AssignedAt = prevAssignedAt
		app.CompletedAt = prevCompletedAt
		if uErr := s.repo.UpdateStatus(ctx, app); uErr != nil {
			s.logger.Error("failed to revert status after log failure", zap.String("application_id", app.ID), zap.Error(uErr))
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record status change")
	}

	if s.metrics != nil {
		s.metrics.RecordWorkflowTransition(string(params.Action))
	}

	if previous == models.StatusNew && s.audit != nil {
		actor := models.CreatorContext{CreatorID: params.ActorID, Role: params.ActorRole}
		s.audit.LogWorkflowInitiated("", actor, app, statusLog)
	}

	if params.Action == models.ActionAssignToTechnician && app.AssigneeID != nil {
		s.notifier.Notify(ctx, *app.AssigneeID, fmt.Sprintf("application %s assigned to you", app.ID))
	}

	return app, statusLog, nil
}

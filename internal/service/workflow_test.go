package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

type fakeWorkflowStore struct {
	app          *models.Application
	statusLogs   []*models.StatusLog
	updateErr    error
	insertLogErr error
}

func (f *fakeWorkflowStore) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if f.app == nil || f.app.ID != id {
		return nil, sql.ErrNoRows
	}
	clone := *f.app
	return &clone, nil
}

func (f *fakeWorkflowStore) UpdateStatus(ctx context.Context, app *models.Application) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.app = app
	return nil
}

func (f *fakeWorkflowStore) InsertStatusLog(ctx context.Context, log *models.StatusLog) error {
	if f.insertLogErr != nil {
		return f.insertLogErr
	}
	f.statusLogs = append(f.statusLogs, log)
	return nil
}

func TestNextStatusTable(t *testing.T) {
	cases := []struct {
		name    string
		current models.ApplicationStatus
		action  models.WorkflowAction
		role    models.StaffRole
		next    models.ApplicationStatus
		ok      bool
	}{
		{"junior reviews new", models.StatusNew, models.ActionReview, models.RoleJuniorManager, models.StatusPending, true},
		{"manager reviews new", models.StatusNew, models.ActionReview, models.RoleManager, models.StatusPending, true},
		{"manager confirms new", models.StatusNew, models.ActionConfirm, models.RoleManager, models.StatusConfirmed, true},
		{"manager confirms pending", models.StatusPending, models.ActionConfirm, models.RoleManager, models.StatusConfirmed, true},
		{"controller assigns new", models.StatusNew, models.ActionAssignToTechnician, models.RoleController, models.StatusAssigned, true},
		{"controller assigns confirmed", models.StatusConfirmed, models.ActionAssignToTechnician, models.RoleController, models.StatusAssigned, true},
		{"warehouse confirms materials", models.StatusConfirmed, models.ActionConfirmMaterials, models.RoleWarehouse, models.StatusInProgress, true},
		{"technician starts work", models.StatusAssigned, models.ActionStartWork, models.RoleTechnician, models.StatusInProgress, true},
		{"technician marks ready", models.StatusInProgress, models.ActionMarkReady, models.RoleTechnician, models.StatusReadyForInstall, true},
		{"technician completes in progress", models.StatusInProgress, models.ActionComplete, models.RoleTechnician, models.StatusCompleted, true},
		{"controller completes ready", models.StatusReadyForInstall, models.ActionComplete, models.RoleController, models.StatusCompleted, true},
		{"call center cancels new", models.StatusNew, models.ActionCancel, models.RoleCallCenter, models.StatusCancelled, true},
		{"manager cancels in progress", models.StatusInProgress, models.ActionCancel, models.RoleManager, models.StatusCancelled, true},

		{"junior cannot confirm", models.StatusNew, models.ActionConfirm, models.RoleJuniorManager, "", false},
		{"technician cannot review", models.StatusNew, models.ActionReview, models.RoleTechnician, "", false},
		{"call center cannot cancel confirmed", models.StatusConfirmed, models.ActionCancel, models.RoleCallCenter, "", false},
		{"no action from completed", models.StatusCompleted, models.ActionCancel, models.RoleManager, "", false},
		{"no action from cancelled", models.StatusCancelled, models.ActionReview, models.RoleManager, "", false},
		{"cannot start work on new", models.StatusNew, models.ActionStartWork, models.RoleTechnician, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, ok := NextStatus(tc.current, tc.action, tc.role)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.next, next)
			}
		})
	}
}

func TestWorkflowAdvance(t *testing.T) {
	store := &fakeWorkflowStore{app: &models.Application{ID: "app-1", Type: models.TypeConnection, Status: models.StatusNew}}
	sink := &recordingSink{}
	audit := NewAuditPipeline(sink, zap.NewNop(), nil, AuditPipelineConfig{QueueCapacity: 8, FlushTimeout: time.Second})
	svc := NewWorkflowService(store, audit, nil, nil, zap.NewNop())

	app, statusLog, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "app-1",
		Action:        models.ActionReview,
		ActorID:       "staff-2",
		ActorRole:     models.RoleManager,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	require.NotNil(t, statusLog)
	assert.Equal(t, models.StatusNew, statusLog.FromStatus)
	assert.Equal(t, models.StatusPending, statusLog.ToStatus)
	assert.Equal(t, models.ActionReview, statusLog.Action)
	require.Len(t, store.statusLogs, 1)

	audit.Close()
	events := sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditWorkflowInitiated, events[0].EventType)
}

func TestWorkflowAdvanceNoTransition(t *testing.T) {
	store := &fakeWorkflowStore{app: &models.Application{ID: "app-1", Type: models.TypeConnection, Status: models.StatusCompleted}}
	svc := NewWorkflowService(store, nil, nil, nil, zap.NewNop())

	_, _, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "app-1",
		Action:        models.ActionCancel,
		ActorID:       "staff-2",
		ActorRole:     models.RoleManager,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusCompleted, store.app.Status)
	assert.Empty(t, store.statusLogs)
}

func TestWorkflowAdvanceUnknownApplication(t *testing.T) {
	store := &fakeWorkflowStore{}
	svc := NewWorkflowService(store, nil, nil, nil, zap.NewNop())

	_, _, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "missing",
		Action:        models.ActionReview,
		ActorRole:     models.RoleManager,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWorkflowAdvanceAssignSetsAssignee(t *testing.T) {
	store := &fakeWorkflowStore{app: &models.Application{ID: "app-1", Type: models.TypeConnection, Status: models.StatusConfirmed}}
	notified := &recordingNotifier{}
	svc := NewWorkflowService(store, nil, notified, nil, zap.NewNop())

	app, _, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "app-1",
		Action:        models.ActionAssignToTechnician,
		ActorID:       "staff-3",
		ActorRole:     models.RoleController,
		AssigneeID:    "tech-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, app.Status)
	require.NotNil(t, app.AssigneeID)
	assert.Equal(t, "tech-1", *app.AssigneeID)
	assert.NotNil(t, app.AssignedAt)
	require.Len(t, notified.targets, 1)
	assert.Equal(t, "tech-1", notified.targets[0])
}

func TestWorkflowAdvanceStatusLogFailureRevertsTransition(t *testing.T) {
	store := &fakeWorkflowStore{
		app:          &models.Application{ID: "app-1", Type: models.TypeConnection, Status: models.StatusConfirmed},
		insertLogErr: errors.New("insert failed"),
	}
	svc := NewWorkflowService(store, nil, nil, nil, zap.NewNop())

	_, _, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "app-1",
		Action:        models.ActionAssignToTechnician,
		ActorID:       "staff-3",
		ActorRole:     models.RoleController,
		AssigneeID:    "tech-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusConfirmed, store.app.Status)
	assert.Nil(t, store.app.AssigneeID)
	assert.Nil(t, store.app.AssignedAt)
	assert.Empty(t, store.statusLogs)
}

func TestWorkflowAdvanceCompleteSetsTimestamp(t *testing.T) {
	store := &fakeWorkflowStore{app: &models.Application{ID: "app-1", Type: models.TypeConnection, Status: models.StatusInProgress}}
	svc := NewWorkflowService(store, nil, nil, nil, zap.NewNop())

	app, _, err := svc.Advance(context.Background(), AdvanceParams{
		ApplicationID: "app-1",
		Action:        models.ActionComplete,
		ActorID:       "tech-1",
		ActorRole:     models.RoleTechnician,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, app.Status)
	assert.NotNil(t, app.CompletedAt)
}

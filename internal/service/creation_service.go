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

type creationStaffStore interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

type creationApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	CountCreatedSince(ctx context.Context, creatorID string, since time.Time) (int, error)
}

// StartCreationResult reports whether a creation session was opened.
type StartCreationResult struct {
	Allowed   bool                    `json:"allowed"`
	Reason    PermissionReason        `json:"reason"`
	SessionID string                  `json:"session_id,omitempty"`
	Creator   models.CreatorContext   `json:"creator"`
	Session   *models.CreationSession `json:"session,omitempty"`
}

// ClientResolution is the routing outcome of a client lookup.
type ClientResolution string

const (
	ResolutionFound     ClientResolution = "found"
	ResolutionNotFound  ClientResolution = "not_found"
	ResolutionAmbiguous ClientResolution = "ambiguous"
)

// SelectClientResult carries the lookup outcome back to the front-end.
type SelectClientResult struct {
	Outcome    ClientResolution        `json:"outcome"`
	Client     *models.Client          `json:"client,omitempty"`
	Candidates []models.Client         `json:"candidates,omitempty"`
	Session    *models.CreationSession `json:"session,omitempty"`
}

// SubmitResult is the confirmation of a committed request.
type SubmitResult struct {
	ApplicationID string                   `json:"application_id"`
	Status        models.ApplicationStatus `json:"status"`
	SessionID     string                   `json:"session_id"`
}

// CreationService orchestrates staff-initiated request creation: it checks
// permission, resolves the client, advances the session and commits the
// request, emitting audit events at every step.
type CreationService struct {
	staff       creationStaffStore
	apps        creationApplicationStore
	permissions *PermissionEngine
	resolver    *ClientResolver
	tracker     *SessionTracker
	audit       *AuditPipeline
	notifier    notifier.Notifier
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCreationService constructs the orchestrator.
func NewCreationService(
	staff creationStaffStore,
	apps creationApplicationStore,
	permissions *PermissionEngine,
	resolver *ClientResolver,
	tracker *SessionTracker,
	audit *AuditPipeline,
	n notifier.Notifier,
	metrics *MetricsService,
	logger *zap.Logger,
) *CreationService {
	if n == nil {
		n = notifier.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreationService{
		staff:       staff,
		apps:        apps,
		permissions: permissions,
		resolver:    resolver,
		tracker:     tracker,
		audit:       audit,
		notifier:    n,
		metrics:     metrics,
		logger:      logger,
	}
}

// StartCreation decides whether the creator may file the request type and,
// when allowed, opens a creation session. Denials are results, not errors:
// the front-end routes them to an explanation screen.
func (s *CreationService) StartCreation(ctx context.Context, creatorID string, appType models.ApplicationType) (*StartCreationResult, error) {
	staff, err := s.staff.FindByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff account")
	}
	if !staff.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	now := time.Now().UTC()
	dailyCount, err := s.apps.CountCreatedSince(ctx, creatorID, startOfDay(now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's applications")
	}

	decision := s.permissions.Check(staff.Role, appType, dailyCount)
	creator := models.CreatorContext{
		CreatorID:  staff.ID,
		Role:       staff.Role,
		FullName:   staff.FullName,
		DailyCount: dailyCount,
		StartedAt:  now,
		Reason:     string(decision.Reason),
	}

	if !decision.Allowed {
		sessionID := NewSessionID(creatorID, now)
		s.audit.LogPermissionDenied(sessionID, creator, appType, decision.Reason)
		return &StartCreationResult{Allowed: false, Reason: decision.Reason, SessionID: sessionID, Creator: creator}, nil
	}

	session, err := s.tracker.Start(ctx, creator, appType)
	if err != nil {
		return nil, err
	}
	s.audit.LogCreationStart(session.ID, creator, appType, decision)

	return &StartCreationResult{
		Allowed:   true,
		Reason:    decision.Reason,
		SessionID: session.ID,
		Creator:   creator,
		Session:   session,
	}, nil
}

// SelectClient resolves a lookup against the session. A single match is
// attached and advances the session; none or several are routing outcomes.
func (s *CreationService) SelectClient(ctx context.Context, actorID, sessionID string, criteria models.ClientCriteria) (*SelectClientResult, error) {
	session, err := s.ownedSession(ctx, actorID, sessionID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolver.Resolve(ctx, criteria)
	if err != nil {
		return nil, err
	}

	switch len(candidates) {
	case 0:
		return &SelectClientResult{Outcome: ResolutionNotFound, Session: session}, nil
	case 1:
		client := candidates[0]
		updated, err := s.tracker.AttachClient(ctx, sessionID, &client, criteria.Method)
		if err != nil {
			return nil, err
		}
		s.audit.LogClientSelected(sessionID, session.Creator, &client, criteria.Method)
		return &SelectClientResult{Outcome: ResolutionFound, Client: &client, Session: updated}, nil
	default:
		return &SelectClientResult{Outcome: ResolutionAmbiguous, Candidates: candidates, Session: session}, nil
	}
}

// CreateClient inserts a new customer record and attaches it to the session.
func (s *CreationService) CreateClient(ctx context.Context, actorID, sessionID string, req CreateClientRequest) (*models.Client, error) {
	session, err := s.ownedSession(ctx, actorID, sessionID)
	if err != nil {
		return nil, err
	}

	client, err := s.resolver.Create(ctx, req)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
			s.audit.LogValidationFailed(sessionID, session.Creator, "client_draft", appErrors.FromError(err).Message)
		}
		return nil, err
	}

	if _, err := s.tracker.AttachClient(ctx, sessionID, client, models.SearchByPhone); err != nil {
		return nil, err
	}
	s.audit.LogClientCreated(sessionID, session.Creator, client)
	return client, nil
}

// SetField records a collected form field on the session.
func (s *CreationService) SetField(ctx context.Context, actorID, sessionID, field, value string) (*models.CreationSession, error) {
	session, err := s.ownedSession(ctx, actorID, sessionID)
	if err != nil {
		return nil, err
	}

	updated, err := s.tracker.SetField(ctx, sessionID, field, value)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
			s.audit.LogValidationFailed(sessionID, session.Creator, field, appErrors.FromError(err).Message)
		}
		return nil, err
	}
	return updated, nil
}

// EditStep loops a reviewing session back to an earlier collecting step.
func (s *CreationService) EditStep(ctx context.Context, actorID, sessionID string, target models.SessionStep) (*models.CreationSession, error) {
	if _, err := s.ownedSession(ctx, actorID, sessionID); err != nil {
		return nil, err
	}
	return s.tracker.Edit(ctx, sessionID, target)
}

// GetSession returns the current session state.
func (s *CreationService) GetSession(ctx context.Context, actorID, sessionID string) (*models.CreationSession, error) {
	return s.ownedSession(ctx, actorID, sessionID)
}

// Cancel abandons a session; cancelling twice is a no-op.
func (s *CreationService) Cancel(ctx context.Context, actorID, sessionID string) error {
	session, err := s.tracker.Get(ctx, sessionID)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrSessionNotFound.Code {
			return nil
		}
		return err
	}
	if session.Creator.CreatorID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "session belongs to another staff member")
	}
	return s.tracker.Cancel(ctx, sessionID)
}

// ownedSession loads a session and rejects any actor other than the staff
// member who opened it.
func (s *CreationService) ownedSession(ctx context.Context, actorID, sessionID string) (*models.CreationSession, error) {
	session, err := s.tracker.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Creator.CreatorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another staff member")
	}
	return session, nil
}

// Submit commits the session as a durable application with status NEW. The
// permission decision is re-checked against today's count at commit time.
// On persistence failure the session survives in reviewing, so a retried
// submit does not require re-entering data.
func (s *CreationService) Submit(ctx context.Context, actorID, sessionID string) (*SubmitResult, error) {
	if _, err := s.ownedSession(ctx, actorID, sessionID); err != nil {
		return nil, err
	}
	session, err := s.tracker.BeginSubmit(ctx, sessionID)
	if err != nil {
		if got, gErr := s.tracker.Get(ctx, sessionID); gErr == nil {
			if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
				s.audit.LogValidationFailed(sessionID, got.Creator, "submit", appErrors.FromError(err).Message)
			}
		}
		return nil, err
	}
	creator := session.Creator

	dailyCount, err := s.apps.CountCreatedSince(ctx, creator.CreatorID, startOfDay(time.Now().UTC()))
	if err != nil {
		s.tracker.FailSubmit(ctx, sessionID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count today's applications")
	}
	decision := s.permissions.Check(creator.Role, session.Type, dailyCount)
	if !decision.Allowed {
		s.tracker.FailSubmit(ctx, sessionID)
		s.audit.LogPermissionDenied(sessionID, creator, session.Type, decision.Reason)
		if decision.Reason == ReasonDailyLimitExceeded {
			return nil, appErrors.Clone(appErrors.ErrDailyLimit, "")
		}
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "")
	}

	priority := session.Priority
	if priority == "" {
		priority = "normal"
	}
	app := &models.Application{
		Type:        session.Type,
		Status:      models.StatusNew,
		CreatorID:   creator.CreatorID,
		CreatorRole: creator.Role,
		ClientID:    session.Client.ID,
		Description: session.Description,
		Location:    session.Location,
		Priority:    priority,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		s.tracker.FailSubmit(ctx, sessionID)
		s.audit.LogError(sessionID, creator, "persist_application", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store application")
	}

	if _, err := s.tracker.Complete(ctx, sessionID); err != nil {
		s.logger.Warn("failed to finalize session after submit", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.audit.LogApplicationSubmitted(sessionID, creator, app)
	if s.metrics != nil {
		s.metrics.RecordApplicationCreated(string(app.Type))
	}

	delivered := s.notifier.Notify(ctx, app.ClientID, fmt.Sprintf("application %s accepted", app.ID))
	s.audit.LogClientNotified(sessionID, creator, app.ID, app.ClientID, delivered)

	return &SubmitResult{ApplicationID: app.ID, Status: app.Status, SessionID: sessionID}, nil
}

// startOfDay returns midnight UTC for the quota window.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

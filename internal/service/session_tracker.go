package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

// Form field bounds checked at the gate into the reviewing step.
const (
	minDescriptionLen = 10
	maxDescriptionLen = 1000
	minLocationLen    = 5
)

// SessionStore abstracts the transient storage for in-flight sessions.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.CreationSession, error)
	Save(ctx context.Context, session *models.CreationSession) error
	Delete(ctx context.Context, session *models.CreationSession) error
	ActiveSessionID(ctx context.Context, creatorID string) (string, error)
}

// SessionTracker holds the multi-step state of one staff member creating one
// request. Steps advance in a strict sequence; the only back-edges are
// explicit edit re-entries from reviewing, which keep collected fields.
type SessionTracker struct {
	store  SessionStore
	logger *zap.Logger
}

// NewSessionTracker constructs a tracker over the given store.
func NewSessionTracker(store SessionStore, logger *zap.Logger) *SessionTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionTracker{store: store, logger: logger}
}

// Start opens a new session in the selecting_client step. A creator's
// previous unfinished session, if any, is discarded first: one active
// session per creator.
func (t *SessionTracker) Start(ctx context.Context, creator models.CreatorContext, appType models.ApplicationType) (*models.CreationSession, error) {
	if prevID, err := t.store.ActiveSessionID(ctx, creator.CreatorID); err == nil && prevID != "" {
		if prev, err := t.store.Get(ctx, prevID); err == nil && !prev.Step.IsTerminal() && prev.Step != models.StepSubmitting {
			prev.Step = models.StepCancelled
			if err := t.store.Delete(ctx, prev); err != nil {
				t.logger.Warn("failed to discard previous session", zap.String("session_id", prevID), zap.Error(err))
			}
		}
	}

	session := &models.CreationSession{
		ID:        NewSessionID(creator.CreatorID, creator.StartedAt),
		Type:      appType,
		Step:      models.StepSelectingClient,
		Creator:   creator,
		UpdatedAt: time.Now().UTC(),
	}
	if err := t.store.Save(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open creation session")
	}
	return session, nil
}

// Get returns the current session state.
func (t *SessionTracker) Get(ctx context.Context, sessionID string) (*models.CreationSession, error) {
	return t.store.Get(ctx, sessionID)
}

// AttachClient resolves the client selection step and advances the session.
// Re-attaching during an edit re-entry returns straight to reviewing when
// the form fields were already collected.
func (t *SessionTracker) AttachClient(ctx context.Context, sessionID string, client *models.Client, method models.ClientSearchMethod) (*models.CreationSession, error) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step != models.StepSelectingClient {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot select client at step %s", session.Step))
	}

	session.Client = client
	session.SearchMethod = method
	if session.Description != "" && session.Location != "" {
		session.Step = models.StepReviewing
	} else {
		session.Step = models.StepEnteringDescription
	}
	return t.save(ctx, session)
}

// SetField records a collected form field. Description and location gate the
// step sequence; priority may be set at any collecting step. A value that
// fails its shape rule leaves the session where it is, never advanced.
func (t *SessionTracker) SetField(ctx context.Context, sessionID, field, value string) (*models.CreationSession, error) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step.IsTerminal() || session.Step == models.StepSubmitting {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session is %s", session.Step))
	}

	switch field {
	case "description":
		if session.Step != models.StepEnteringDescription {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot set description at step %s", session.Step))
		}
		if vErr := validateDescription(value); vErr != nil {
			return nil, vErr
		}
		session.Description = value
		if session.Location != "" {
			session.Step = models.StepReviewing
		} else {
			session.Step = models.StepEnteringAddress
		}
	case "location":
		if session.Step != models.StepEnteringAddress {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot set location at step %s", session.Step))
		}
		if vErr := validateLocation(value); vErr != nil {
			return nil, vErr
		}
		session.Location = value
		if vErr := validateForReview(session); vErr != nil {
			return nil, vErr
		}
		session.Step = models.StepReviewing
	case "priority":
		session.Priority = value
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field %q", field))
	}

	return t.save(ctx, session)
}

// Edit loops the session back from reviewing to an earlier collecting step
// without losing already-collected fields.
func (t *SessionTracker) Edit(ctx context.Context, sessionID string, target models.SessionStep) (*models.CreationSession, error) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step != models.StepReviewing {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot edit at step %s", session.Step))
	}
	switch target {
	case models.StepSelectingClient, models.StepEnteringDescription, models.StepEnteringAddress:
		session.Step = target
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot edit to step %s", target))
	}
	return t.save(ctx, session)
}

// BeginSubmit revalidates the session and moves it into the submitting step.
// From there eviction cannot reclaim it: submission runs to completion or is
// explicitly failed back to reviewing.
func (t *SessionTracker) BeginSubmit(ctx context.Context, sessionID string) (*models.CreationSession, error) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step != models.StepReviewing {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot submit at step %s", session.Step))
	}
	if vErr := validateForReview(session); vErr != nil {
		return nil, vErr
	}
	session.Step = models.StepSubmitting
	return t.save(ctx, session)
}

// Complete finalises a submitting session: the state is returned one last
// time and the handle is invalidated.
func (t *SessionTracker) Complete(ctx context.Context, sessionID string) (*models.CreationSession, error) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Step = models.StepSubmitted
	session.UpdatedAt = time.Now().UTC()
	if err := t.store.Delete(ctx, session); err != nil {
		t.logger.Warn("failed to remove submitted session", zap.String("session_id", sessionID), zap.Error(err))
	}
	return session, nil
}

// FailSubmit returns a submitting session to reviewing so the operator can
// retry without re-entering collected data.
func (t *SessionTracker) FailSubmit(ctx context.Context, sessionID string) {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		return
	}
	if session.Step != models.StepSubmitting {
		return
	}
	session.Step = models.StepReviewing
	if _, err := t.save(ctx, session); err != nil {
		t.logger.Warn("failed to restore session after submit failure", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Cancel abandons a session. Cancelling an expired, already-cancelled or
// already-submitted session is a no-op; cancelling mid-submit is refused.
func (t *SessionTracker) Cancel(ctx context.Context, sessionID string) error {
	session, err := t.store.Get(ctx, sessionID)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrSessionNotFound.Code {
			return nil
		}
		return err
	}
	if session.Step.IsTerminal() {
		return nil
	}
	if session.Step == models.StepSubmitting {
		return appErrors.Clone(appErrors.ErrConflict, "submission in progress")
	}
	session.Step = models.StepCancelled
	if err := t.store.Delete(ctx, session); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	return nil
}

func (t *SessionTracker) save(ctx context.Context, session *models.CreationSession) (*models.CreationSession, error) {
	session.UpdatedAt = time.Now().UTC()
	if err := t.store.Save(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save session")
	}
	return session, nil
}

// Bounds count characters, not bytes: descriptions arrive in Uzbek and
// Russian, where Cyrillic runes are two bytes each.
func validateDescription(value string) *appErrors.Error {
	if n := utf8.RuneCountInString(value); n < minDescriptionLen || n > maxDescriptionLen {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("description must be between %d and %d characters", minDescriptionLen, maxDescriptionLen))
	}
	return nil
}

func validateLocation(value string) *appErrors.Error {
	if utf8.RuneCountInString(value) < minLocationLen {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("location must be at least %d characters", minLocationLen))
	}
	return nil
}

func validateForReview(session *models.CreationSession) *appErrors.Error {
	if session.Client == nil {
		return appErrors.Clone(appErrors.ErrValidation, "a client must be selected before review")
	}
	if vErr := validateDescription(session.Description); vErr != nil {
		return vErr
	}
	return validateLocation(session.Location)
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
)

const (
	sessionKeyPrefix = "creation:session:"
	activeKeyPrefix  = "creation:active:"
)

// SessionRepository stores in-flight creation sessions in Redis. The TTL is
// the idle window: every save refreshes it, so abandoned sessions expire on
// their own and never leak.
type SessionRepository struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepository{client: client, logger: logger, ttl: ttl}
}

// Get retrieves a session by id. Missing or expired sessions surface as
// ErrSessionNotFound.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*models.CreationSession, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "")
		}
		return nil, fmt.Errorf("redis get session %s: %w", sessionID, err)
	}

	var session models.CreationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Save persists the session and refreshes the idle TTL, keeping the active
// pointer for the creator in step.
func (r *SessionRepository) Save(ctx context.Context, session *models.CreationSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, r.ttl)
	pipe.Set(ctx, activeKeyPrefix+session.Creator.CreatorID, session.ID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save session %s: %w", session.ID, err)
	}
	return nil
}

// Delete removes the session and its active pointer.
func (r *SessionRepository) Delete(ctx context.Context, session *models.CreationSession) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+session.ID)
	pipe.Del(ctx, activeKeyPrefix+session.Creator.CreatorID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete session %s: %w", session.ID, err)
	}
	return nil
}

// ActiveSessionID returns the id of the creator's current session, or empty
// when none is active.
func (r *SessionRepository) ActiveSessionID(ctx context.Context, creatorID string) (string, error) {
	id, err := r.client.Get(ctx, activeKeyPrefix+creatorID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("redis get active session for %s: %w", creatorID, err)
	}
	return id, nil
}

// Close releases the underlying Redis connection if present.
func (r *SessionRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
	"github.com/uzconnect/operator-console-api/pkg/storage"
)

type fakeAuditQueryRepo struct {
	events []models.AuditEvent
	err    error
	filter models.AuditFilter
}

func (f *fakeAuditQueryRepo) Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func trailEvents() []models.AuditEvent {
	appID := "app-1"
	return []models.AuditEvent{
		{
			ID:          "evt-1",
			CreatorID:   "staff-1",
			CreatorRole: models.RoleJuniorManager,
			EventType:   models.AuditCreationStarted,
			Severity:    models.SeverityInfo,
			SessionID:   "sess-1",
			EventData:   json.RawMessage(`{"application_type":"connection"}`),
			CreatedAt:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:            "evt-2",
			ApplicationID: &appID,
			CreatorID:     "staff-1",
			CreatorRole:   models.RoleJuniorManager,
			EventType:     models.AuditApplicationSubmitted,
			Severity:      models.SeverityInfo,
			SessionID:     "sess-1",
			CreatedAt:     time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC),
		},
	}
}

func TestAuditListPassesFilter(t *testing.T) {
	repo := &fakeAuditQueryRepo{events: trailEvents()}
	svc := NewAuditQueryService(repo, nil, nil, zap.NewNop())

	events, err := svc.List(context.Background(), models.AuditFilter{CreatorID: "staff-1", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "staff-1", repo.filter.CreatorID)
	assert.Equal(t, 50, repo.filter.Limit)
}

func TestAuditListRepoFailure(t *testing.T) {
	repo := &fakeAuditQueryRepo{err: errors.New("connection refused")}
	svc := NewAuditQueryService(repo, nil, nil, zap.NewNop())

	_, err := svc.List(context.Background(), models.AuditFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestExportSessionTrailCSV(t *testing.T) {
	repo := &fakeAuditQueryRepo{events: trailEvents()}
	svc := NewAuditQueryService(repo, nil, nil, zap.NewNop())

	data, contentType, err := svc.ExportSessionTrail(context.Background(), "sess-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "sess-1", repo.filter.SessionID)

	body := strings.TrimPrefix(string(data), "\uFEFF")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Time,Event,Severity,Creator,Role,Application,Details", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "creation_started")
	assert.Contains(t, lines[2], "application_submitted")
	assert.Contains(t, lines[2], "app-1")
}

func TestExportSessionTrailPDF(t *testing.T) {
	repo := &fakeAuditQueryRepo{events: trailEvents()}
	svc := NewAuditQueryService(repo, nil, nil, zap.NewNop())

	data, contentType, err := svc.ExportSessionTrail(context.Background(), "sess-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportSessionTrailEmpty(t *testing.T) {
	svc := NewAuditQueryService(&fakeAuditQueryRepo{}, nil, nil, zap.NewNop())

	_, _, err := svc.ExportSessionTrail(context.Background(), "sess-1", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportSessionTrailBadFormat(t *testing.T) {
	svc := NewAuditQueryService(&fakeAuditQueryRepo{events: trailEvents()}, nil, nil, zap.NewNop())

	_, _, err := svc.ExportSessionTrail(context.Background(), "sess-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestArchiveAndOpenRoundTrip(t *testing.T) {
	archive, err := storage.NewArchiveDir(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewArchiveTokenSigner("test-secret", time.Hour)
	svc := NewAuditQueryService(&fakeAuditQueryRepo{events: trailEvents()}, archive, signer, zap.NewNop())

	res, err := svc.ArchiveSessionTrail(context.Background(), "sess-1", "csv")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.True(t, strings.HasPrefix(res.File, "sessions/sess-1/"))
	assert.True(t, strings.HasSuffix(res.File, ".csv"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)

	file, contentType, err := svc.OpenArchive(res.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "text/csv", contentType)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "creation_started")
}

func TestOpenArchiveRejectsTamperedToken(t *testing.T) {
	archive, err := storage.NewArchiveDir(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewArchiveTokenSigner("test-secret", time.Hour)
	svc := NewAuditQueryService(&fakeAuditQueryRepo{events: trailEvents()}, archive, signer, zap.NewNop())

	res, err := svc.ArchiveSessionTrail(context.Background(), "sess-1", "csv")
	require.NoError(t, err)

	_, _, err = svc.OpenArchive(res.Token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestArchiveWithoutStorageConfigured(t *testing.T) {
	svc := NewAuditQueryService(&fakeAuditQueryRepo{events: trailEvents()}, nil, nil, zap.NewNop())

	_, err := svc.ArchiveSessionTrail(context.Background(), "sess-1", "csv")
	require.Error(t, err)

	_, _, err = svc.OpenArchive("token")
	require.Error(t, err)
}

package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uzconnect/operator-console-api/internal/models"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
	"github.com/uzconnect/operator-console-api/pkg/export"
	"github.com/uzconnect/operator-console-api/pkg/storage"
)

type auditQueryRepository interface {
	Query(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error)
}

// AuditQueryService serves read access to the audit log: filtered listings
// for reviewers, per-session trail exports and archived export downloads.
type AuditQueryService struct {
	repo    auditQueryRepository
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	archive *storage.ArchiveDir
	signer  *storage.ArchiveTokenSigner
	logger  *zap.Logger
}

// ArchiveResult references one archived session trail export.
type ArchiveResult struct {
	Token     string    `json:"token"`
	File      string    `json:"file"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAuditQueryService creates an AuditQueryService. Archive and signer are
// optional; without them only inline exports are available.
func NewAuditQueryService(repo auditQueryRepository, archive *storage.ArchiveDir, signer *storage.ArchiveTokenSigner, logger *zap.Logger) *AuditQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditQueryService{
		repo:    repo,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		archive: archive,
		signer:  signer,
		logger:  logger,
	}
}

// List returns audit events matching the filter, oldest first.
func (s *AuditQueryService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	events, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query audit events")
	}
	return events, nil
}

// ExportSessionTrail renders the full trail of one creation session as CSV or
// PDF bytes, returning the content type alongside.
func (s *AuditQueryService) ExportSessionTrail(ctx context.Context, sessionID, format string) ([]byte, string, error) {
	if sessionID == "" {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}

	events, err := s.repo.Query(ctx, models.AuditFilter{SessionID: sessionID, Limit: 1000})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session trail")
	}
	if len(events) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "no audit events for session")
	}

	dataset := trailDataset(events)

	switch format {
	case "", "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case "pdf":
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Session trail %s", sessionID))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
}

// ArchiveSessionTrail renders a session trail, stores it on disk and returns
// a signed download token.
func (s *AuditQueryService) ArchiveSessionTrail(ctx context.Context, sessionID, format string) (*ArchiveResult, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export archive is not configured")
	}

	data, _, err := s.ExportSessionTrail(ctx, sessionID, format)
	if err != nil {
		return nil, err
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("sessions/%s/%d.%s", sessionID, time.Now().UTC().Unix(), ext)
	if err := s.archive.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Sign(sessionID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	return &ArchiveResult{Token: token, File: filename, ExpiresAt: expiresAt}, nil
}

// OpenArchive validates a signed token and opens the referenced export file.
// The caller owns the returned handle.
func (s *AuditQueryService) OpenArchive(token string) (*os.File, string, error) {
	if s.archive == nil || s.signer == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "export archive is not configured")
	}

	_, relPath, _, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	file, err := s.archive.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}

	contentType := "text/csv"
	if strings.HasSuffix(relPath, ".pdf") {
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

func trailDataset(events []models.AuditEvent) export.Dataset {
	headers := []string{"Time", "Event", "Severity", "Creator", "Role", "Application", "Details"}
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		appID := ""
		if e.ApplicationID != nil {
			appID = *e.ApplicationID
		}
		rows = append(rows, map[string]string{
			"Time":        e.CreatedAt.UTC().Format(time.RFC3339),
			"Event":       string(e.EventType),
			"Severity":    string(e.Severity),
			"Creator":     e.CreatorID,
			"Role":        string(e.CreatorRole),
			"Application": appID,
			"Details":     string(e.EventData),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

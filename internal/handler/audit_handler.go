package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/internal/service"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
	"github.com/uzconnect/operator-console-api/pkg/response"
)

// AuditHandler wires HTTP endpoints to the audit query service.
type AuditHandler struct {
	service *service.AuditQueryService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditQueryService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// List godoc
// @Summary List audit events
// @Description Lists audit events filtered by session, creator, type and time range
// @Tags Audit
// @Produce json
// @Param session_id query string false "Session ID"
// @Param creator_id query string false "Creator staff ID"
// @Param event_type query string false "Event type"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param limit query int false "Result limit"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit/events [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		SessionID: c.Query("session_id"),
		CreatorID: c.Query("creator_id"),
		EventType: models.AuditEventType(c.Query("event_type")),
	}

	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.To = &ts
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be an integer"))
			return
		}
		filter.Limit = limit
	}

	events, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, events, nil)
}

// ExportSession godoc
// @Summary Export one session's audit trail
// @Description Renders the trail of a creation session as CSV or PDF
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param sessionId path string true "Session ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /audit/sessions/{sessionId}/export [get]
func (h *AuditHandler) ExportSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	format := c.DefaultQuery("format", "csv")

	data, contentType, err := h.service.ExportSessionTrail(c.Request.Context(), sessionID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=session-%s.%s", sessionID, ext))
	c.Data(http.StatusOK, contentType, data)
}

// ArchiveSession godoc
// @Summary Archive one session's audit trail
// @Description Stores the rendered trail on disk and returns a signed download token
// @Tags Audit
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audit/sessions/{sessionId}/archive [post]
func (h *AuditHandler) ArchiveSession(c *gin.Context) {
	res, err := h.service.ArchiveSessionTrail(c.Request.Context(), c.Param("sessionId"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// DownloadArchive godoc
// @Summary Download an archived export
// @Description Streams an archived session trail referenced by a signed token
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /audit/exports/{token} [get]
func (h *AuditHandler) DownloadArchive(c *gin.Context) {
	file, contentType, err := h.service.OpenArchive(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read export"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", info.Name()))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

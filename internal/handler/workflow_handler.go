package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/internal/service"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
	"github.com/uzconnect/operator-console-api/pkg/response"
)

// WorkflowHandler wires HTTP endpoints to workflow transitions.
type WorkflowHandler struct {
	service *service.WorkflowService
}

// NewWorkflowHandler creates a new handler.
func NewWorkflowHandler(svc *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: svc}
}

// Advance godoc
// @Summary Advance an application through its workflow
// @Description Applies a role-gated status transition to the application
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body object true "Action and optional assignee"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/advance [post]
func (h *WorkflowHandler) Advance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Action     models.WorkflowAction `json:"action" binding:"required"`
		AssigneeID string                `json:"assignee_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "action is required"))
		return
	}

	app, log, err := h.service.Advance(c.Request.Context(), service.AdvanceParams{
		ApplicationID: c.Param("id"),
		Action:        payload.Action,
		ActorID:       claims.StaffID,
		ActorRole:     claims.Role,
		AssigneeID:    payload.AssigneeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"application": app, "status_log": log}, nil)
}

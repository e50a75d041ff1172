package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/internal/service"
	appErrors "github.com/uzconnect/operator-console-api/pkg/errors"
	"github.com/uzconnect/operator-console-api/pkg/response"
)

// CreationHandler wires HTTP endpoints to the application creation flow.
type CreationHandler struct {
	service *service.CreationService
}

// NewCreationHandler creates a new handler.
func NewCreationHandler(svc *service.CreationService) *CreationHandler {
	return &CreationHandler{service: svc}
}

// Start godoc
// @Summary Start an application creation session
// @Description Checks permissions and opens a tracked creation session
// @Tags Creation
// @Accept json
// @Produce json
// @Param payload body object true "Application type"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /creation/start [post]
func (h *CreationHandler) Start(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Type models.ApplicationType `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "application type is required"))
		return
	}

	res, err := h.service.StartCreation(c.Request.Context(), claims.StaffID, payload.Type)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !res.Allowed {
		response.JSON(c, http.StatusForbidden, res, nil)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// SelectClient godoc
// @Summary Search and select a client for the session
// @Description Resolves a client by phone, name or id and attaches a unique match
// @Tags Creation
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.ClientCriteria true "Search criteria"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /creation/{id}/client/select [post]
func (h *CreationHandler) SelectClient(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var criteria models.ClientCriteria
	if err := c.ShouldBindJSON(&criteria); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search criteria"))
		return
	}

	res, err := h.service.SelectClient(c.Request.Context(), claims.StaffID, c.Param("id"), criteria)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// CreateClient godoc
// @Summary Create a new client for the session
// @Description Registers a client record and attaches it to the session
// @Tags Creation
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.CreateClientRequest true "New client"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /creation/{id}/client [post]
func (h *CreationHandler) CreateClient(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid client payload"))
		return
	}

	client, err := h.service.CreateClient(c.Request.Context(), claims.StaffID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, client)
}

// SetField godoc
// @Summary Set a session field
// @Description Records description, location or priority on the session
// @Tags Creation
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body object true "Field and value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /creation/{id}/fields [patch]
func (h *CreationHandler) SetField(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Field string `json:"field" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "field and value are required"))
		return
	}

	session, err := h.service.SetField(c.Request.Context(), claims.StaffID, c.Param("id"), payload.Field, payload.Value)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Edit godoc
// @Summary Return a reviewing session to an earlier step
// @Tags Creation
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body object true "Target step"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /creation/{id}/edit [post]
func (h *CreationHandler) Edit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Step models.SessionStep `json:"step" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "step is required"))
		return
	}

	session, err := h.service.EditStep(c.Request.Context(), claims.StaffID, c.Param("id"), payload.Step)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Get godoc
// @Summary Get the current session state
// @Tags Creation
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /creation/{id} [get]
func (h *CreationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), claims.StaffID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Submit godoc
// @Summary Submit the session as a new application
// @Description Re-checks permissions, persists the application and finishes the session
// @Tags Creation
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /creation/{id}/submit [post]
func (h *CreationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.Submit(c.Request.Context(), claims.StaffID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Cancel godoc
// @Summary Cancel a creation session
// @Tags Creation
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /creation/{id} [delete]
func (h *CreationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), claims.StaffID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

package handler

import (
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionsHandler struct{ svc service.SessionService }

func NewSessionsHandler(svc service.SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// Start godoc
// @Summary      Start or resume a table session
// @Description  Called by a guest device after scanning the table QR. A table with an active session returns it with status "resumed".
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        tenant_id path string                  true "Tenant UUID"
// @Param        body      body dto.StartSessionRequest true "QR token and optional PIN"
// @Success      200  {object} dto.StartSessionResponse
// @Failure      401  {object} apierror.APIError
// @Failure      404  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/sessions/start [post]
func (h *SessionsHandler) Start(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var req dto.StartSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Start(c.Request.Context(), tenantID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verify godoc
// @Summary      Verify a guest access token
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        tenant_id path string                   true "Tenant UUID"
// @Param        body      body dto.VerifySessionRequest true "Access token"
// @Success      200  {object} dto.VerifySessionResponse
// @Failure      401  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/sessions/verify [post]
func (h *SessionsHandler) Verify(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var req dto.VerifySessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Verify(c.Request.Context(), tenantID, req.AccessToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Close godoc
// @Summary      Close a table session
// @Description  Ends the session and frees the table. Closing a closed session is a no-op.
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant UUID"
// @Param        id        path string true "Session UUID"
// @Success      200  {object} dto.CloseSessionResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/sessions/{id}/close [post]
func (h *SessionsHandler) Close(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), tenantID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

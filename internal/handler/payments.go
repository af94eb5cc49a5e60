package handler

import (
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentsHandler struct{ svc service.PaymentService }

func NewPaymentsHandler(svc service.PaymentService) *PaymentsHandler {
	return &PaymentsHandler{svc: svc}
}

// Pay godoc
// @Summary      Record a payment
// @Description  Omitting amount pays the outstanding balance. Full settlement completes the order, closes its session and posts the journal entry.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string         true "Tenant UUID"
// @Param        id        path string         true "Order UUID"
// @Param        body      body dto.PayRequest true "Amount and method"
// @Success      201  {object} dto.PayResponse
// @Failure      422  {object} apierror.APIError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/orders/{id}/pay [post]
func (h *PaymentsHandler) Pay(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.PayRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Pay(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

package handler

import (
	"net/http"

	"restopos/internal/dto"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// RecordMovement godoc
// @Summary      Record a manual stock movement
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string                    true "Tenant UUID"
// @Param        body      body dto.RecordMovementRequest true "Movement"
// @Success      201  {object} dto.StockMovementResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/inventory/movements [post]
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		return
	}
	var req dto.RecordMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordMovement(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMovements godoc
// @Summary      List stock movements
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id     path  string true  "Tenant UUID"
// @Param        ingredient_id query string false "Ingredient UUID"
// @Param        movement_type query string false "in | out"
// @Param        reason        query string false "purchase | sale | waste | adjustment"
// @Param        page          query int    false "Page (default 1)"
// @Param        limit         query int    false "Page size (default 100)"
// @Success      200  {object} dto.MovementListResponse
// @Router       /v1/tenants/{tenant_id}/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	var filter dto.MovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), tenantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Alerts returns ingredients at or below their minimum stock.
func (h *InventoryHandler) Alerts(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	alerts, err := h.svc.LowStock(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

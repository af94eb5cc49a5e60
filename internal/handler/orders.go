package handler

import (
	"net/http"

	"restopos/internal/apierror"
	"restopos/internal/authz"
	"restopos/internal/dto"
	"restopos/internal/middleware"
	"restopos/internal/model"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type OrdersHandler struct{ svc service.OrderService }

func NewOrdersHandler(svc service.OrderService) *OrdersHandler { return &OrdersHandler{svc: svc} }

// Create godoc
// @Summary      Place an order round
// @Description  Validates, prices and reserves stock in one transaction. A table with an active session appends to its open order.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string                 true "Tenant UUID"
// @Param        body      body dto.CreateOrderRequest true "Order lines"
// @Success      201  {object} dto.OrderResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/tenants/{tenant_id}/orders [post]
func (h *OrdersHandler) Create(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GuestCreate godoc
// @Summary      Place a round from a guest device
// @Description  The table comes from the session behind X-Session-Token.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        tenant_id       path   string                true "Tenant UUID"
// @Param        X-Session-Token header string                true "Guest access token"
// @Param        body            body   dto.GuestOrderRequest true "Order lines"
// @Success      201  {object} dto.OrderResponse
// @Failure      401  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/sessions/orders [post]
func (h *OrdersHandler) GuestCreate(c *gin.Context) {
	sess := middleware.GetSession(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, apierror.New("invalid or expired session"))
		return
	}
	var req dto.GuestOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	name := sess.CustomerName
	if name == "" {
		name = "Guest"
	}
	actor := service.Actor{TenantID: sess.TenantID, SessionID: &sess.ID, Name: name, Role: string(authz.RoleTableUser)}
	tableID := sess.TableID.String()
	resp, err := h.svc.Create(c.Request.Context(), actor, dto.CreateOrderRequest{
		TableID:      &tableID,
		OrderType:    model.OrderDineIn,
		CustomerName: sess.CustomerName,
		Items:        req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string true "Tenant UUID"
// @Param        id        path string true "Order UUID"
// @Success      200  {object} dto.OrderResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/orders/{id} [get]
func (h *OrdersHandler) Get(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateStatus godoc
// @Summary      Move an order through its lifecycle
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string                       true "Tenant UUID"
// @Param        id        path string                       true "Order UUID"
// @Param        body      body dto.UpdateOrderStatusRequest true "Target status"
// @Success      200  {object} dto.OrderResponse
// @Failure      422  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/orders/{id}/status [patch]
func (h *OrdersHandler) UpdateStatus(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrderStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateItemStatus godoc
// @Summary      Update the kitchen status of one line
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path string                      true "Tenant UUID"
// @Param        id        path string                      true "Order UUID"
// @Param        item_id   path string                      true "Order item UUID"
// @Param        body      body dto.UpdateItemStatusRequest true "Target status"
// @Success      200  {object} dto.OrderResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/orders/{id}/items/{item_id}/status [patch]
func (h *OrdersHandler) UpdateItemStatus(c *gin.Context) {
	actor, ok := staffActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "item_id")
	if !ok {
		return
	}
	var req dto.UpdateItemStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateItemStatus(c.Request.Context(), actor, id, itemID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"

	"restopos/internal/apierror"
	"restopos/internal/service"

	"github.com/gin-gonic/gin"
)

type AccountingHandler struct{ svc service.AccountingService }

func NewAccountingHandler(svc service.AccountingService) *AccountingHandler {
	return &AccountingHandler{svc: svc}
}

// FindEntry godoc
// @Summary      Find a journal entry by reference
// @Tags         accounting
// @Produce      json
// @Security     BearerAuth
// @Param        tenant_id path  string true "Tenant UUID"
// @Param        reference query string true "Entry reference, e.g. ORDER-<uuid>"
// @Success      200  {object} dto.JournalEntryResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/tenants/{tenant_id}/accounting/entries [get]
func (h *AccountingHandler) FindEntry(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}
	ref := c.Query("reference")
	if ref == "" {
		c.JSON(http.StatusBadRequest, apierror.New("reference is required"))
		return
	}
	resp, err := h.svc.FindByReference(c.Request.Context(), tenantID, ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

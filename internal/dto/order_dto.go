package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OrderLineRequest struct {
	ItemID    string   `json:"item_id"    validate:"required,uuid"`
	Quantity  int      `json:"quantity"   validate:"required,min=1"`
	VariantID *string  `json:"variant_id" validate:"omitempty,uuid"`
	AddonIDs  []string `json:"addon_ids"  validate:"omitempty,dive,uuid"`
	Notes     string   `json:"notes"      validate:"max=255"`
}

// CreateOrderRequest places a new round. With a table that has an active
// session, the round is appended to the session's open order.
type CreateOrderRequest struct {
	TableID      *string            `json:"table_id"      validate:"omitempty,uuid"`
	OrderType    string             `json:"order_type"    validate:"omitempty,oneof=dine_in takeaway delivery"`
	CustomerName string             `json:"customer_name" validate:"max=100"`
	Items        []OrderLineRequest `json:"items"         validate:"required,min=1,dive"`
}

// GuestOrderRequest is the QR flow variant: the table comes from the session token.
type GuestOrderRequest struct {
	Items []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open confirmed preparing ready served completed cancelled"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending sent preparing ready served cancelled"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderItemResponse struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	Item      string          `json:"item"`
	Variant   string          `json:"variant,omitempty"`
	Addons    []string        `json:"addons"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Notes     string          `json:"notes"`
	Status    string          `json:"status"`
}

type OrderResponse struct {
	ID                  string              `json:"id"`
	TableID             *string             `json:"table_id"`
	SessionID           *string             `json:"session_id"`
	OrderType           string              `json:"order_type"`
	Status              string              `json:"status"`
	CustomerName        string              `json:"customer_name"`
	WaiterName          string              `json:"waiter_name"`
	TotalAmount         decimal.Decimal     `json:"total_amount"`
	TaxAmount           decimal.Decimal     `json:"tax_amount"`
	ServiceChargeAmount decimal.Decimal     `json:"service_charge_amount"`
	InventoryDeducted   bool                `json:"inventory_deducted"`
	Appended            bool                `json:"appended"`
	Items               []OrderItemResponse `json:"items"`
	CreatedAt           string              `json:"created_at"`
	CompletedAt         *string             `json:"completed_at"`
}

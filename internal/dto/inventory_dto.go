package dto

import "github.com/shopspring/decimal"

// RecordMovementRequest is a manual stock adjustment (purchase, waste, count).
type RecordMovementRequest struct {
	IngredientID string          `json:"ingredient_id" validate:"required,uuid"`
	MovementType string          `json:"movement_type" validate:"required,oneof=in out"`
	Quantity     decimal.Decimal `json:"quantity"      validate:"required"`
	Reason       string          `json:"reason"        validate:"required,oneof=purchase waste adjustment"`
	Note         string          `json:"note"          validate:"max=255"`
}

// MovementFilter is bound from the query string of GET /inventory/movements.
type MovementFilter struct {
	IngredientID string `form:"ingredient_id" validate:"omitempty,uuid"`
	MovementType string `form:"movement_type" validate:"omitempty,oneof=in out"`
	Reason       string `form:"reason"        validate:"omitempty,oneof=purchase sale waste adjustment"`
	Page         int    `form:"page,default=1"    validate:"min=1"`
	Limit        int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type StockMovementResponse struct {
	ID           string          `json:"id"`
	IngredientID string          `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	MovementType string          `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason"`
	StockBefore  decimal.Decimal `json:"stock_before"`
	StockAfter   decimal.Decimal `json:"stock_after"`
	Note         string          `json:"note"`
	ReferenceID  *string         `json:"reference_id"`
	CreatedAt    string          `json:"created_at"`
}

type MovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

type LowStockAlert struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	MinStock     decimal.Decimal `json:"min_stock"`
}

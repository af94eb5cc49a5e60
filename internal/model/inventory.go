package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock movement directions.
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// Stock movement reasons.
const (
	ReasonPurchase   = "purchase"
	ReasonSale       = "sale"
	ReasonWaste      = "waste"
	ReasonAdjustment = "adjustment"
)

// Ingredient is a stock unit consumed through recipes.
// CurrentStock never goes below zero in a committed state.
type Ingredient struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name         string          `gorm:"not null"`
	Unit         string          `gorm:"type:varchar(20);not null;default:'g'"`
	CurrentStock decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0;check:chk_ingredients_stock_nonneg,current_stock >= 0"`
	MinStock     decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0"`
	CostPerUnit  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StockMovement records every ingredient stock change.
// Rows are append-only.
type StockMovement struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	IngredientID uuid.UUID       `gorm:"type:uuid;not null;index"`
	MovementType string          `gorm:"type:varchar(5);not null"` // in | out
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Reason       string          `gorm:"type:varchar(20);not null;default:'adjustment'"`
	StockBefore  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	StockAfter   decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	Note         string
	ReferenceID  *uuid.UUID `gorm:"type:uuid"` // order id for sales
	ActorID      *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID"`
}

// TableName keeps the ledger name explicit.
func (StockMovement) TableName() string { return "stock_movements" }

// Recipe maps one unit of Item to a quantity of Ingredient.
type Recipe struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	IngredientID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null"`
}

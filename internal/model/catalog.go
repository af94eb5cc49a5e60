package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog rows are owned by the menu service. The engine reads them and only
// ever writes Item.CurrentStock.

// Category decides the printer class of its items.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	IsKitchen bool      `gorm:"not null;default:true"`
	IsBar     bool      `gorm:"not null;default:false"`
}

// TableName overrides GORM's default pluralization (categorys).
func (Category) TableName() string { return "categories" }

// Item is a sellable catalog entry. MaintainStock=true means its own
// CurrentStock is decremented on sale instead of resolving a recipe.
type Item struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	CategoryID        *uuid.UUID      `gorm:"type:uuid;index"`
	Name              string          `gorm:"not null"`
	BasePrice         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IsAvailable       bool            `gorm:"not null;default:true"`
	MaintainStock     bool            `gorm:"not null;default:false"`
	CurrentStock      int             `gorm:"not null;default:0"`
	LowStockThreshold int             `gorm:"not null;default:5"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

// ItemVariant adjusts the base price (e.g. "Large" +2.00).
type ItemVariant struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name       string          `gorm:"not null"`
	PriceDelta decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
}

// Addon is an optional extra attached to an order line.
type Addon struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name        string          `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	IsAvailable bool            `gorm:"not null;default:true"`
}

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order status values.
const (
	OrderOpen      = "open"
	OrderConfirmed = "confirmed"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderServed    = "served"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order type values.
const (
	OrderDineIn   = "dine_in"
	OrderTakeaway = "takeaway"
	OrderDelivery = "delivery"
)

// OrderItem status values.
const (
	ItemPending   = "pending"
	ItemSent      = "sent"
	ItemPreparing = "preparing"
	ItemReady     = "ready"
	ItemServed    = "served"
	ItemCancelled = "cancelled"
)

// AppendableStatuses are the order states that still accept new rounds.
var AppendableStatuses = []string{OrderOpen, OrderConfirmed, OrderPreparing, OrderReady, OrderServed}

// Order is one tab. TotalAmount is the running sum of committed line totals.
// Completed and cancelled are terminal.
type Order struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	TableID             *uuid.UUID      `gorm:"type:uuid;index"`
	SessionID           *uuid.UUID      `gorm:"type:uuid;index"`
	WaiterID            *uuid.UUID      `gorm:"type:uuid"`
	WaiterName          string          `gorm:"type:varchar(100);not null;default:''"`
	CustomerName        string          `gorm:"type:varchar(100);not null;default:''"`
	OrderType           string          `gorm:"type:varchar(20);not null;default:'dine_in'"`
	Status              string          `gorm:"type:varchar(20);not null;default:'open';index"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	DiscountAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	ServiceChargeAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	InventoryDeducted   bool            `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time

	Table *Table      `gorm:"foreignKey:TableID"`
	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// IsAppendable reports whether new items may be added to the order.
func (o *Order) IsAppendable() bool {
	for _, s := range AppendableStatuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

// OrderItem is one ordered line. Price is the unit price frozen at order time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null"`
	VariantID *uuid.UUID      `gorm:"type:uuid"`
	Quantity  int             `gorm:"not null;default:1"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Notes     string          `gorm:"type:varchar(255);not null;default:''"`
	Status    string          `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt time.Time

	Item    *Item        `gorm:"foreignKey:ItemID"`
	Variant *ItemVariant `gorm:"foreignKey:VariantID"`
	Addons  []Addon      `gorm:"many2many:order_item_addons"`
}

// LineTotal is Price × Quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

package repository

import (
	"context"
	"time"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// FindOpenBySessionTx locks the session's appendable order; nil, nil if none.
	FindOpenBySessionTx(tx *gorm.DB, tenantID, sessionID uuid.UUID) (*model.Order, error)
	LockTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error)
	FindByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error)
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Order, error)
	CreateTx(tx *gorm.DB, o *model.Order) error
	CreateItemsTx(tx *gorm.DB, items []model.OrderItem) error
	// AddTotalTx adds delta to total_amount in place and marks inventory deducted.
	AddTotalTx(tx *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error
	// UpdateStatusTx moves the order to status only while it is in one of
	// from. It reports whether a row changed.
	UpdateStatusTx(tx *gorm.DB, tenantID, id uuid.UUID, from []string, to string, completedAt *time.Time) (bool, error)
	LockItemTx(tx *gorm.DB, tenantID, orderID, itemID uuid.UUID) (*model.OrderItem, error)
	UpdateItemStatusTx(tx *gorm.DB, tenantID, itemID uuid.UUID, from, to string) (bool, error)
	ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses []string) ([]model.Order, error)
	// ListCompletedWithoutEntry scans every tenant for completed orders that
	// have no journal entry yet, in (completed_at, id) order after cursor.
	ListCompletedWithoutEntry(ctx context.Context, after OrderCursor, limit int) ([]model.Order, error)
}

// OrderCursor is a keyset position over (completed_at, id). The zero value
// starts from the beginning.
type OrderCursor struct {
	CompletedAt time.Time
	ID          uuid.UUID
}

// CursorAfter returns the position just past o.
func CursorAfter(o *model.Order) OrderCursor {
	c := OrderCursor{ID: o.ID}
	if o.CompletedAt != nil {
		c.CompletedAt = *o.CompletedAt
	}
	return c
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) FindOpenBySessionTx(tx *gorm.DB, tenantID, sessionID uuid.UUID) (*model.Order, error) {
	var orders []model.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND session_id = ? AND status IN ?", tenantID, sessionID, model.AppendableStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&orders).Error
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

func (r *orderRepo) LockTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&o).Error
	return &o, err
}

func (r *orderRepo) FindByIDTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&o).Error
	return &o, err
}

func (r *orderRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Table").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Items.Item.Category").
		Preload("Items.Variant").
		Preload("Items.Addons").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&o).Error
	return &o, err
}

func (r *orderRepo) CreateTx(tx *gorm.DB, o *model.Order) error {
	return tx.Omit("Table", "Items").Create(o).Error
}

func (r *orderRepo) CreateItemsTx(tx *gorm.DB, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	// Addons already exist; only the join rows are written.
	return tx.Omit("Addons.*").Create(&items).Error
}

func (r *orderRepo) AddTotalTx(tx *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.Order{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"total_amount":       gorm.Expr("total_amount + ?", delta),
			"inventory_deducted": true,
		}).Error
}

func (r *orderRepo) UpdateStatusTx(tx *gorm.DB, tenantID, id uuid.UUID, from []string, to string, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	res := tx.Model(&model.Order{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *orderRepo) LockItemTx(tx *gorm.DB, tenantID, orderID, itemID uuid.UUID) (*model.OrderItem, error) {
	var it model.OrderItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND order_id = ? AND id = ?", tenantID, orderID, itemID).
		First(&it).Error
	return &it, err
}

func (r *orderRepo) UpdateItemStatusTx(tx *gorm.DB, tenantID, itemID uuid.UUID, from, to string) (bool, error) {
	res := tx.Model(&model.OrderItem{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, itemID, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *orderRepo) ListByStatus(ctx context.Context, tenantID uuid.UUID, statuses []string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Table").
		Preload("Items.Item").
		Preload("Items.Variant").
		Preload("Items.Addons").
		Where("tenant_id = ? AND status IN ?", tenantID, statuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) ListCompletedWithoutEntry(ctx context.Context, after OrderCursor, limit int) ([]model.Order, error) {
	var orders []model.Order
	q := r.db.WithContext(ctx).
		Where("status = ?", model.OrderCompleted).
		Where(`NOT EXISTS (
			SELECT 1 FROM journal_entries je
			WHERE je.tenant_id = orders.tenant_id
			  AND je.reference = 'Order #' || orders.id::text)`)
	if !after.CompletedAt.IsZero() {
		q = q.Where("(completed_at, id) > (?, ?)", after.CompletedAt, after.ID)
	}
	err := q.Order("completed_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

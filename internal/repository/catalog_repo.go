package repository

import (
	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository is the engine's read view of the menu. The only write is
// the stock decrement of directly stock-tracked items.
type CatalogRepository interface {
	// LockItemsTx locks the tenant's items in ascending id order. Ids that do
	// not exist for the tenant are simply absent from the result.
	LockItemsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Item, error)
	// ForeignItemIDsTx returns the ids among ids that belong to another tenant.
	ForeignItemIDsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	FindVariantTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.ItemVariant, error)
	FindAddonsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Addon, error)
	DecrementStockTx(tx *gorm.DB, tenantID, itemID uuid.UUID, qty int) error
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) LockItemsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Item, error) {
	var items []model.Item
	if len(ids) == 0 {
		return items, nil
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Category").
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *catalogRepo) ForeignItemIDsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	if len(ids) == 0 {
		return out, nil
	}
	err := tx.Model(&model.Item{}).
		Where("tenant_id <> ? AND id IN ?", tenantID, ids).
		Order("id").
		Pluck("id", &out).Error
	return out, err
}

func (r *catalogRepo) FindVariantTx(tx *gorm.DB, tenantID, id uuid.UUID) (*model.ItemVariant, error) {
	var v model.ItemVariant
	err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&v).Error
	return &v, err
}

func (r *catalogRepo) FindAddonsTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Addon, error) {
	var addons []model.Addon
	if len(ids) == 0 {
		return addons, nil
	}
	err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&addons).Error
	return addons, err
}

func (r *catalogRepo) DecrementStockTx(tx *gorm.DB, tenantID, itemID uuid.UUID, qty int) error {
	return tx.Model(&model.Item{}).
		Where("tenant_id = ? AND id = ?", tenantID, itemID).
		Update("current_stock", gorm.Expr("current_stock - ?", qty)).Error
}

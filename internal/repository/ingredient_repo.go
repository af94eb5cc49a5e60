package repository

import (
	"context"

	"restopos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementFilter defines filters for listing stock movements.
type MovementFilter struct {
	IngredientID *uuid.UUID
	MovementType string
	Reason       string
	Page         int
	Limit        int
}

type IngredientRepository interface {
	// LockTx locks the tenant's ingredients in ascending id order. Ids that do
	// not exist for the tenant are absent from the result.
	LockTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Ingredient, error)
	UpdateStockTx(tx *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error
	CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error
	ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]model.Ingredient, error)
	ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]model.StockMovement, int64, error)
}

type ingredientRepo struct{ db *gorm.DB }

func NewIngredientRepository(db *gorm.DB) IngredientRepository {
	return &ingredientRepo{db: db}
}

func (r *ingredientRepo) LockTx(tx *gorm.DB, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Ingredient, error) {
	var ingredients []model.Ingredient
	if len(ids) == 0 {
		return ingredients, nil
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id").
		Find(&ingredients).Error
	return ingredients, err
}

func (r *ingredientRepo) UpdateStockTx(tx *gorm.DB, tenantID, id uuid.UUID, delta decimal.Decimal) error {
	return tx.Model(&model.Ingredient{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("current_stock", gorm.Expr("current_stock + ?", delta)).Error
}

func (r *ingredientRepo) CreateMovementTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *ingredientRepo) ListLowStock(ctx context.Context, tenantID uuid.UUID) ([]model.Ingredient, error) {
	var ingredients []model.Ingredient
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND current_stock <= min_stock", tenantID).
		Order("name").
		Find(&ingredients).Error
	return ingredients, err
}

func (r *ingredientRepo) ListMovements(ctx context.Context, tenantID uuid.UUID, filter MovementFilter) ([]model.StockMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Where("tenant_id = ?", tenantID)
	if filter.IngredientID != nil {
		q = q.Where("ingredient_id = ?", *filter.IngredientID)
	}
	if filter.MovementType != "" {
		q = q.Where("movement_type = ?", filter.MovementType)
	}
	if filter.Reason != "" {
		q = q.Where("reason = ?", filter.Reason)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var movements []model.StockMovement
	err := q.Preload("Ingredient").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&movements).Error
	return movements, total, err
}

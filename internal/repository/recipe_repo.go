package repository

import (
	"restopos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecipeRepository interface {
	FindByItemsTx(tx *gorm.DB, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]model.Recipe, error)
}

type recipeRepo struct{ db *gorm.DB }

func NewRecipeRepository(db *gorm.DB) RecipeRepository { return &recipeRepo{db: db} }

func (r *recipeRepo) FindByItemsTx(tx *gorm.DB, tenantID uuid.UUID, itemIDs []uuid.UUID) ([]model.Recipe, error) {
	var recipes []model.Recipe
	if len(itemIDs) == 0 {
		return recipes, nil
	}
	err := tx.Where("tenant_id = ? AND item_id IN ?", tenantID, itemIDs).Find(&recipes).Error
	return recipes, err
}

package service

import (
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemQuantity is one ordered line reduced to what recipes need.
type ItemQuantity struct {
	ItemID   uuid.UUID
	Quantity int
}

// RecipeResolver turns ordered items into ingredient demand.
type RecipeResolver interface {
	// Demand sums recipe.quantity × line quantity per ingredient. Items without
	// a recipe contribute nothing.
	Demand(tx *gorm.DB, tenantID uuid.UUID, lines []ItemQuantity) (map[uuid.UUID]decimal.Decimal, error)
}

type recipeResolver struct {
	recipes repository.RecipeRepository
}

func NewRecipeResolver(recipes repository.RecipeRepository) RecipeResolver {
	return &recipeResolver{recipes: recipes}
}

func (r *recipeResolver) Demand(tx *gorm.DB, tenantID uuid.UUID, lines []ItemQuantity) (map[uuid.UUID]decimal.Decimal, error) {
	demand := make(map[uuid.UUID]decimal.Decimal)
	if len(lines) == 0 {
		return demand, nil
	}

	qtyByItem := make(map[uuid.UUID]int64, len(lines))
	itemIDs := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, seen := qtyByItem[l.ItemID]; !seen {
			itemIDs = append(itemIDs, l.ItemID)
		}
		qtyByItem[l.ItemID] += int64(l.Quantity)
	}

	recipes, err := r.recipes.FindByItemsTx(tx, tenantID, itemIDs)
	if err != nil {
		return nil, err
	}
	for _, rc := range recipes {
		qty, ok := qtyByItem[rc.ItemID]
		if !ok {
			continue
		}
		demand[rc.IngredientID] = demand[rc.IngredientID].Add(rc.Quantity.Mul(decimal.NewFromInt(qty)))
	}
	return demand, nil
}

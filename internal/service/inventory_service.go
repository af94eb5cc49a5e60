package service

import (
	"bytes"
	"context"
	"sort"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reservation is the stock taken by one order round.
type Reservation struct {
	TenantID uuid.UUID
	ActorID  *uuid.UUID
	// Ingredients is the recipe demand per ingredient.
	Ingredients map[uuid.UUID]decimal.Decimal
	// Items is the quantity per directly stock-tracked item. The caller has
	// already locked these rows and checked their stock.
	Items       map[uuid.UUID]int
	Note        string
	ReferenceID *uuid.UUID
}

// InventoryService is the ingredient ledger: every stock change goes through
// it and leaves a StockMovement behind.
type InventoryService interface {
	// ReserveTx checks every ingredient before deducting any of them, so a
	// shortfall leaves nothing written.
	ReserveTx(tx *gorm.DB, r Reservation) error
	RecordMovement(ctx context.Context, actor Actor, req dto.RecordMovementRequest) (*dto.StockMovementResponse, error)
	LowStock(ctx context.Context, tenantID uuid.UUID) ([]dto.LowStockAlert, error)
	ListMovements(ctx context.Context, tenantID uuid.UUID, filter dto.MovementFilter) (*dto.MovementListResponse, error)
}

type inventoryService struct {
	tx          repository.Transactor
	ingredients repository.IngredientRepository
	catalog     repository.CatalogRepository
}

func NewInventoryService(tx repository.Transactor, ingredients repository.IngredientRepository, catalog repository.CatalogRepository) InventoryService {
	return &inventoryService{tx: tx, ingredients: ingredients, catalog: catalog}
}

// sortedIDs returns ids in the order Postgres sorts uuid columns.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// ── ReserveTx ─────────────────────────────────────────────────────────────────

func (s *inventoryService) ReserveTx(tx *gorm.DB, r Reservation) error {
	ids := make([]uuid.UUID, 0, len(r.Ingredients))
	for id, qty := range r.Ingredients {
		if qty.IsPositive() {
			ids = append(ids, id)
		}
	}
	sortedIDs(ids)

	if len(ids) > 0 {
		rows, err := s.ingredients.LockTx(tx, r.TenantID, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.Ingredient, len(rows))
		for _, ing := range rows {
			byID[ing.ID] = ing
		}

		// Check all first.
		for _, id := range ids {
			ing, ok := byID[id]
			if !ok {
				return apierror.NotFound("ingredient %s not found", id)
			}
			if ing.CurrentStock.LessThan(r.Ingredients[id]) {
				return apierror.InsufficientStock(ing.Name)
			}
		}

		// Then deduct.
		for _, id := range ids {
			ing := byID[id]
			need := r.Ingredients[id]
			if err := s.ingredients.UpdateStockTx(tx, r.TenantID, id, need.Neg()); err != nil {
				return err
			}
			mov := &model.StockMovement{
				TenantID:     r.TenantID,
				IngredientID: id,
				MovementType: model.MovementOut,
				Quantity:     need,
				Reason:       model.ReasonSale,
				StockBefore:  ing.CurrentStock,
				StockAfter:   ing.CurrentStock.Sub(need),
				Note:         r.Note,
				ReferenceID:  r.ReferenceID,
				ActorID:      r.ActorID,
			}
			if err := s.ingredients.CreateMovementTx(tx, mov); err != nil {
				return err
			}
		}
	}

	itemIDs := make([]uuid.UUID, 0, len(r.Items))
	for id, qty := range r.Items {
		if qty > 0 {
			itemIDs = append(itemIDs, id)
		}
	}
	for _, id := range sortedIDs(itemIDs) {
		if err := s.catalog.DecrementStockTx(tx, r.TenantID, id, r.Items[id]); err != nil {
			return err
		}
	}
	return nil
}

// ── RecordMovement ────────────────────────────────────────────────────────────

func (s *inventoryService) RecordMovement(ctx context.Context, actor Actor, req dto.RecordMovementRequest) (*dto.StockMovementResponse, error) {
	ingredientID, err := uuid.Parse(req.IngredientID)
	if err != nil {
		return nil, apierror.Invalid("invalid ingredient_id")
	}
	if !req.Quantity.IsPositive() {
		return nil, apierror.Invalid("quantity must be greater than zero")
	}
	if req.MovementType != model.MovementIn && req.MovementType != model.MovementOut {
		return nil, apierror.Invalid("movement_type must be in or out")
	}
	if req.Reason == model.ReasonSale {
		return nil, apierror.Invalid("sale movements are recorded by orders")
	}

	var mov *model.StockMovement
	var ingredientName string
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		rows, err := s.ingredients.LockTx(tx, actor.TenantID, []uuid.UUID{ingredientID})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apierror.NotFound("ingredient not found")
		}
		ing := rows[0]
		ingredientName = ing.Name

		delta := req.Quantity
		if req.MovementType == model.MovementOut {
			if ing.CurrentStock.LessThan(req.Quantity) {
				return apierror.InsufficientStock(ing.Name)
			}
			delta = delta.Neg()
		}
		if err := s.ingredients.UpdateStockTx(tx, actor.TenantID, ing.ID, delta); err != nil {
			return err
		}
		mov = &model.StockMovement{
			TenantID:     actor.TenantID,
			IngredientID: ing.ID,
			MovementType: req.MovementType,
			Quantity:     req.Quantity,
			Reason:       req.Reason,
			StockBefore:  ing.CurrentStock,
			StockAfter:   ing.CurrentStock.Add(delta),
			Note:         req.Note,
			ActorID:      actor.UserID,
			CreatedAt:    time.Now().UTC(),
		}
		return s.ingredients.CreateMovementTx(tx, mov)
	})
	if err != nil {
		return nil, apierror.FromDB(err, "ingredient not found")
	}

	log.Info().
		Str("tenant_id", actor.TenantID.String()).
		Str("ingredient", ingredientName).
		Str("type", mov.MovementType).
		Str("quantity", mov.Quantity.String()).
		Str("reason", mov.Reason).
		Msg("stock movement recorded")

	resp := movementToResponse(mov)
	resp.Ingredient = ingredientName
	return &resp, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *inventoryService) LowStock(ctx context.Context, tenantID uuid.UUID) ([]dto.LowStockAlert, error) {
	rows, err := s.ingredients.ListLowStock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	alerts := make([]dto.LowStockAlert, 0, len(rows))
	for _, ing := range rows {
		alerts = append(alerts, dto.LowStockAlert{
			IngredientID: ing.ID.String(),
			Name:         ing.Name,
			Unit:         ing.Unit,
			CurrentStock: ing.CurrentStock,
			MinStock:     ing.MinStock,
		})
	}
	return alerts, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, tenantID uuid.UUID, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	f := repository.MovementFilter{
		MovementType: filter.MovementType,
		Reason:       filter.Reason,
		Page:         filter.Page,
		Limit:        filter.Limit,
	}
	if filter.IngredientID != "" {
		id, err := uuid.Parse(filter.IngredientID)
		if err != nil {
			return nil, apierror.Invalid("invalid ingredient_id")
		}
		f.IngredientID = &id
	}

	rows, total, err := s.ingredients.ListMovements(ctx, tenantID, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(rows))
	for i := range rows {
		r := movementToResponse(&rows[i])
		if rows[i].Ingredient != nil {
			r.Ingredient = rows[i].Ingredient.Name
		}
		data = append(data, r)
	}
	return &dto.MovementListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func movementToResponse(m *model.StockMovement) dto.StockMovementResponse {
	r := dto.StockMovementResponse{
		ID:           m.ID.String(),
		IngredientID: m.IngredientID.String(),
		MovementType: m.MovementType,
		Quantity:     m.Quantity,
		Reason:       m.Reason,
		StockBefore:  m.StockBefore,
		StockAfter:   m.StockAfter,
		Note:         m.Note,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
	if m.ReferenceID != nil {
		ref := m.ReferenceID.String()
		r.ReferenceID = &ref
	}
	return r
}

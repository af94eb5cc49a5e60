package service

import (
	"context"
	"fmt"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/dto"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Unknown item policies.
const (
	UnknownItemSkip   = "skip"
	UnknownItemReject = "reject"
)

// OrderService is the order transaction engine.
type OrderService interface {
	// Create validates, prices and reserves stock for a round in one
	// transaction. A table with an active session appends to its open order.
	Create(ctx context.Context, actor Actor, req dto.CreateOrderRequest) (*dto.OrderResponse, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status string) (*dto.OrderResponse, error)
	UpdateItemStatus(ctx context.Context, actor Actor, orderID, itemID uuid.UUID, status string) (*dto.OrderResponse, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*dto.OrderResponse, error)
	// KitchenQueue lists the orders a display that connects late still needs.
	KitchenQueue(ctx context.Context, tenantID uuid.UUID) ([]dto.OrderResponse, error)
}

// OrderOptions carries the engine's tunables.
type OrderOptions struct {
	UnknownItemPolicy string
}

type orderService struct {
	tx        repository.Transactor
	orders    repository.OrderRepository
	tables    repository.TableRepository
	catalog   repository.CatalogRepository
	recipes   RecipeResolver
	inventory InventoryService
	hooks     []Hook
	opts      OrderOptions
}

func NewOrderService(
	tx repository.Transactor,
	orders repository.OrderRepository,
	tables repository.TableRepository,
	catalog repository.CatalogRepository,
	recipes RecipeResolver,
	inventory InventoryService,
	hooks []Hook,
	opts OrderOptions,
) OrderService {
	if opts.UnknownItemPolicy == "" {
		opts.UnknownItemPolicy = UnknownItemSkip
	}
	return &orderService{
		tx:        tx,
		orders:    orders,
		tables:    tables,
		catalog:   catalog,
		recipes:   recipes,
		inventory: inventory,
		hooks:     hooks,
		opts:      opts,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────
// Lock order inside the transaction: table → order → items (ascending id) →
// ingredients (ascending id). Everything is validated before the first write,
// and any error rolls the whole round back.

type parsedLine struct {
	itemID    uuid.UUID
	qty       int
	variantID *uuid.UUID
	addonIDs  []uuid.UUID
	notes     string
}

type parsedOrder struct {
	tableID      *uuid.UUID
	orderType    string
	customerName string
	lines        []parsedLine
	itemIDs      []uuid.UUID
}

func parseOrderRequest(req dto.CreateOrderRequest) (*parsedOrder, error) {
	if len(req.Items) == 0 {
		return nil, apierror.Invalid("order must contain at least one item")
	}
	p := &parsedOrder{orderType: req.OrderType, customerName: req.CustomerName}
	if req.TableID != nil && *req.TableID != "" {
		id, err := uuid.Parse(*req.TableID)
		if err != nil {
			return nil, apierror.Invalid("invalid table_id")
		}
		p.tableID = &id
	}
	if p.orderType == "" {
		p.orderType = model.OrderTakeaway
		if p.tableID != nil {
			p.orderType = model.OrderDineIn
		}
	}
	switch p.orderType {
	case model.OrderDineIn:
		if p.tableID == nil {
			return nil, apierror.Invalid("dine_in orders require table_id")
		}
	case model.OrderTakeaway, model.OrderDelivery:
	default:
		return nil, apierror.Invalid("invalid order_type %q", p.orderType)
	}

	seen := map[uuid.UUID]bool{}
	for i, l := range req.Items {
		itemID, err := uuid.Parse(l.ItemID)
		if err != nil {
			return nil, apierror.Invalid("items[%d]: invalid item_id", i)
		}
		if l.Quantity < 1 {
			return nil, apierror.Invalid("items[%d]: quantity must be at least 1", i)
		}
		pl := parsedLine{itemID: itemID, qty: l.Quantity, notes: l.Notes}
		if l.VariantID != nil && *l.VariantID != "" {
			vid, err := uuid.Parse(*l.VariantID)
			if err != nil {
				return nil, apierror.Invalid("items[%d]: invalid variant_id", i)
			}
			pl.variantID = &vid
		}
		addonSeen := map[uuid.UUID]bool{}
		for _, a := range l.AddonIDs {
			aid, err := uuid.Parse(a)
			if err != nil {
				return nil, apierror.Invalid("items[%d]: invalid addon id", i)
			}
			if !addonSeen[aid] {
				addonSeen[aid] = true
				pl.addonIDs = append(pl.addonIDs, aid)
			}
		}
		p.lines = append(p.lines, pl)
		if !seen[itemID] {
			seen[itemID] = true
			p.itemIDs = append(p.itemIDs, itemID)
		}
	}
	sortedIDs(p.itemIDs)
	return p, nil
}

type createResult struct {
	orderID  uuid.UUID
	status   string
	newItems []uuid.UUID
	appended bool
}

func (s *orderService) Create(ctx context.Context, actor Actor, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithAttributes(
		attribute.String("tenant_id", actor.TenantID.String()),
		attribute.Int("lines", len(req.Items)),
	))
	defer span.End()

	plan, err := parseOrderRequest(req)
	if err != nil {
		return nil, err
	}

	var res createResult
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.createTx(tx, actor, plan)
		return err
	})
	if err != nil {
		err = apierror.FromDB(err, "not found")
		span.RecordError(err)
		span.SetStatus(codes.Error, apierror.KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.String("order_id", res.orderID.String()), attribute.Bool("appended", res.appended))

	log.Info().
		Str("tenant_id", actor.TenantID.String()).
		Str("order_id", res.orderID.String()).
		Int("new_items", len(res.newItems)).
		Bool("appended", res.appended).
		Msg("order round committed")

	runHooks(ctx, s.hooks, Transition{
		Kind:     TransitionItemsSent,
		TenantID: actor.TenantID,
		Actor:    actor,
		OrderID:  res.orderID,
		From:     res.status,
		To:       res.status,
		ItemIDs:  res.newItems,
	})

	resp, err := s.Get(ctx, actor.TenantID, res.orderID)
	if err != nil {
		return nil, err
	}
	resp.Appended = res.appended
	return resp, nil
}

func (s *orderService) createTx(tx *gorm.DB, actor Actor, plan *parsedOrder) (createResult, error) {
	tenantID := actor.TenantID
	var res createResult

	// 1. Table and its active session.
	var tableID, sessionID *uuid.UUID
	customerName := plan.customerName
	if plan.tableID != nil {
		table, err := s.tables.LockByIDTx(tx, tenantID, *plan.tableID)
		if err != nil {
			return res, apierror.FromDB(err, "table not found")
		}
		tableID = &table.ID
		sess, err := s.tables.FindActiveSessionTx(tx, tenantID, table.ID)
		if err != nil {
			return res, err
		}
		// A guest may only add to the session it scanned into.
		if actor.SessionID != nil && (sess == nil || sess.ID != *actor.SessionID) {
			return res, apierror.Unauthorized("invalid or expired session")
		}
		if sess != nil {
			sessionID = &sess.ID
			if customerName == "" {
				customerName = sess.CustomerName
			}
		}
	}

	// 2. Open order of the session, if any.
	var order *model.Order
	if sessionID != nil {
		existing, err := s.orders.FindOpenBySessionTx(tx, tenantID, *sessionID)
		if err != nil {
			return res, err
		}
		order = existing
	}
	orderID := uuid.New()
	if order != nil {
		orderID = order.ID
	}

	// 3. Items, ascending id.
	items, err := s.catalog.LockItemsTx(tx, tenantID, plan.itemIDs)
	if err != nil {
		return res, err
	}
	byID := make(map[uuid.UUID]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	// Another tenant's id is never treated as merely unknown.
	if len(byID) < len(plan.itemIDs) {
		var missing []uuid.UUID
		for _, id := range plan.itemIDs {
			if byID[id] == nil {
				missing = append(missing, id)
			}
		}
		foreign, err := s.catalog.ForeignItemIDsTx(tx, tenantID, missing)
		if err != nil {
			return res, err
		}
		if len(foreign) > 0 {
			return res, apierror.NotFound("item %s not found", foreign[0])
		}
	}

	var (
		lines       []model.OrderItem
		recipeLines []ItemQuantity
		itemDemand  = map[uuid.UUID]int{}
		total       = decimal.Zero
	)
	for _, l := range plan.lines {
		item, ok := byID[l.itemID]
		if !ok {
			if s.opts.UnknownItemPolicy == UnknownItemReject {
				return res, apierror.NotFound("item %s not found", l.itemID)
			}
			log.Warn().
				Str("tenant_id", tenantID.String()).
				Str("item_id", l.itemID.String()).
				Msg("order: unknown item skipped")
			continue
		}
		if !item.IsAvailable {
			return res, apierror.Invalid("%s is not available", item.Name)
		}

		price := item.BasePrice
		if l.variantID != nil {
			v, err := s.catalog.FindVariantTx(tx, tenantID, *l.variantID)
			if err != nil {
				return res, apierror.FromDB(err, fmt.Sprintf("variant %s not found", *l.variantID))
			}
			if v.ItemID != item.ID {
				return res, apierror.NotFound("variant %s not found for %s", *l.variantID, item.Name)
			}
			price = price.Add(v.PriceDelta)
		}

		addons, err := s.catalog.FindAddonsTx(tx, tenantID, l.addonIDs)
		if err != nil {
			return res, err
		}
		if len(addons) != len(l.addonIDs) {
			return res, apierror.NotFound("addon not found")
		}
		for _, a := range addons {
			if !a.IsAvailable {
				return res, apierror.Invalid("addon %s is not available", a.Name)
			}
		}

		if item.MaintainStock {
			itemDemand[item.ID] += l.qty
		} else {
			recipeLines = append(recipeLines, ItemQuantity{ItemID: item.ID, Quantity: l.qty})
		}

		line := model.OrderItem{
			ID:        uuid.New(),
			TenantID:  tenantID,
			OrderID:   orderID,
			ItemID:    item.ID,
			VariantID: l.variantID,
			Quantity:  l.qty,
			Price:     price,
			Notes:     l.notes,
			Status:    model.ItemSent,
			Addons:    addons,
		}
		total = total.Add(line.LineTotal())
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return res, apierror.Invalid("no valid items")
	}

	// Directly stock-tracked items, summed across lines.
	for i := range items {
		need := itemDemand[items[i].ID]
		if need > 0 && items[i].CurrentStock < need {
			return res, apierror.InsufficientStock(items[i].Name)
		}
	}

	demand, err := s.recipes.Demand(tx, tenantID, recipeLines)
	if err != nil {
		return res, err
	}

	// 4–5. Ingredients, then tracked items.
	if err := s.inventory.ReserveTx(tx, Reservation{
		TenantID:    tenantID,
		ActorID:     actor.UserID,
		Ingredients: demand,
		Items:       itemDemand,
		Note:        OrderReference(orderID),
		ReferenceID: &orderID,
	}); err != nil {
		return res, err
	}

	// 6. Order and lines.
	if order == nil {
		order = &model.Order{
			ID:           orderID,
			TenantID:     tenantID,
			TableID:      tableID,
			SessionID:    sessionID,
			WaiterID:     actor.UserID,
			WaiterName:   actor.Name,
			CustomerName: customerName,
			OrderType:    plan.orderType,
			Status:       model.OrderOpen,
		}
		if err := s.orders.CreateTx(tx, order); err != nil {
			return res, err
		}
	} else {
		res.appended = true
	}
	if err := s.orders.CreateItemsTx(tx, lines); err != nil {
		return res, err
	}
	if err := s.orders.AddTotalTx(tx, tenantID, orderID, total); err != nil {
		return res, err
	}

	res.orderID = orderID
	res.status = order.Status
	for _, l := range lines {
		res.newItems = append(res.newItems, l.ID)
	}
	return res, nil
}

// OrderReference is the reference stamped on an order's journal entry and
// stock movements.
func OrderReference(orderID uuid.UUID) string {
	return "Order #" + orderID.String()
}

// ── Status transitions ────────────────────────────────────────────────────────
// completed is reachable only through payment; completed and cancelled are
// terminal.

var orderTransitions = map[string][]string{
	model.OrderOpen:      {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed: {model.OrderPreparing, model.OrderCancelled},
	model.OrderPreparing: {model.OrderReady, model.OrderCancelled},
	model.OrderReady:     {model.OrderServed, model.OrderCancelled},
	model.OrderServed:    {model.OrderCancelled},
}

var itemTransitions = map[string][]string{
	model.ItemPending:   {model.ItemSent, model.ItemCancelled},
	model.ItemSent:      {model.ItemPreparing, model.ItemCancelled},
	model.ItemPreparing: {model.ItemReady, model.ItemCancelled},
	model.ItemReady:     {model.ItemServed, model.ItemCancelled},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *orderService) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status string) (*dto.OrderResponse, error) {
	var from string
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		o, err := s.orders.LockTx(tx, actor.TenantID, orderID)
		if err != nil {
			return apierror.FromDB(err, "order not found")
		}
		from = o.Status
		if !allowed(orderTransitions, from, status) {
			return apierror.Invalid("cannot move order from %s to %s", from, status)
		}
		ok, err := s.orders.UpdateStatusTx(tx, actor.TenantID, orderID, []string{from}, status, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apierror.Invalid("order status changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, apierror.FromDB(err, "order not found")
	}

	log.Info().
		Str("tenant_id", actor.TenantID.String()).
		Str("order_id", orderID.String()).
		Str("from", from).
		Str("to", status).
		Msg("order status changed")

	runHooks(ctx, s.hooks, Transition{
		Kind:     TransitionStatus,
		TenantID: actor.TenantID,
		Actor:    actor,
		OrderID:  orderID,
		From:     from,
		To:       status,
	})
	return s.Get(ctx, actor.TenantID, orderID)
}

func (s *orderService) UpdateItemStatus(ctx context.Context, actor Actor, orderID, itemID uuid.UUID, status string) (*dto.OrderResponse, error) {
	var from string
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		o, err := s.orders.LockTx(tx, actor.TenantID, orderID)
		if err != nil {
			return apierror.FromDB(err, "order not found")
		}
		if o.Status == model.OrderCompleted || o.Status == model.OrderCancelled {
			return apierror.Invalid("order is %s", o.Status)
		}
		it, err := s.orders.LockItemTx(tx, actor.TenantID, orderID, itemID)
		if err != nil {
			return apierror.FromDB(err, "order item not found")
		}
		from = it.Status
		if !allowed(itemTransitions, from, status) {
			return apierror.Invalid("cannot move item from %s to %s", from, status)
		}
		ok, err := s.orders.UpdateItemStatusTx(tx, actor.TenantID, itemID, from, status)
		if err != nil {
			return err
		}
		if !ok {
			return apierror.Invalid("item status changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, apierror.FromDB(err, "order not found")
	}

	runHooks(ctx, s.hooks, Transition{
		Kind:     TransitionItemStatus,
		TenantID: actor.TenantID,
		Actor:    actor,
		OrderID:  orderID,
		From:     from,
		To:       status,
		ItemIDs:  []uuid.UUID{itemID},
	})
	return s.Get(ctx, actor.TenantID, orderID)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, apierror.FromDB(err, "order not found")
	}
	return orderToResponse(o), nil
}

var kitchenQueueStatuses = []string{
	model.OrderOpen,
	model.OrderConfirmed,
	model.OrderPreparing,
	model.OrderReady,
}

func (s *orderService) KitchenQueue(ctx context.Context, tenantID uuid.UUID) ([]dto.OrderResponse, error) {
	orders, err := s.orders.ListByStatus(ctx, tenantID, kitchenQueueStatuses)
	if err != nil {
		return nil, err
	}
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, *orderToResponse(&orders[i]))
	}
	return out, nil
}

func orderToResponse(o *model.Order) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		ID:                  o.ID.String(),
		OrderType:           o.OrderType,
		Status:              o.Status,
		CustomerName:        o.CustomerName,
		WaiterName:          o.WaiterName,
		TotalAmount:         o.TotalAmount,
		TaxAmount:           o.TaxAmount,
		ServiceChargeAmount: o.ServiceChargeAmount,
		InventoryDeducted:   o.InventoryDeducted,
		Items:               make([]dto.OrderItemResponse, 0, len(o.Items)),
		CreatedAt:           o.CreatedAt.Format(time.RFC3339),
	}
	if o.TableID != nil {
		id := o.TableID.String()
		resp.TableID = &id
	}
	if o.SessionID != nil {
		id := o.SessionID.String()
		resp.SessionID = &id
	}
	if o.CompletedAt != nil {
		at := o.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	for _, it := range o.Items {
		ir := dto.OrderItemResponse{
			ID:        it.ID.String(),
			ItemID:    it.ItemID.String(),
			Quantity:  it.Quantity,
			Price:     it.Price,
			LineTotal: it.LineTotal(),
			Notes:     it.Notes,
			Status:    it.Status,
			Addons:    make([]string, 0, len(it.Addons)),
		}
		if it.Item != nil {
			ir.Item = it.Item.Name
		}
		if it.Variant != nil {
			ir.Variant = it.Variant.Name
		}
		for _, a := range it.Addons {
			ir.Addons = append(ir.Addons, a.Name)
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

package service

import (
	"context"

	"restopos/internal/apierror"
	"restopos/internal/events"
	"restopos/internal/model"
	"restopos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("restopos/service")

// Actor is the authenticated caller of an engine operation. UserID is nil for
// guests ordering through a table session; SessionID is set only for them.
type Actor struct {
	TenantID  uuid.UUID
	UserID    *uuid.UUID
	SessionID *uuid.UUID
	Name      string
	Role      string
}

// TransitionKind names what a committed transaction changed.
type TransitionKind string

const (
	TransitionItemsSent  TransitionKind = "items_sent"
	TransitionStatus     TransitionKind = "status"
	TransitionItemStatus TransitionKind = "item_status"
	TransitionCompleted  TransitionKind = "completed"
)

// Transition is handed to every post-commit hook.
// ItemIDs holds the new lines for items_sent and the changed line for
// item_status.
type Transition struct {
	Kind     TransitionKind
	TenantID uuid.UUID
	Actor    Actor
	OrderID  uuid.UUID
	From     string
	To       string
	ItemIDs  []uuid.UUID
}

// Hook runs after a transaction has committed. Its error is logged and never
// undoes the commit.
type Hook interface {
	Name() string
	AfterCommit(ctx context.Context, t Transition) error
}

// runHooks calls hooks in order. The request context may already be cancelled
// by the time a slow hook runs, so hooks get a detached one.
func runHooks(ctx context.Context, hooks []Hook, t Transition) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		if err := h.AfterCommit(ctx, t); err != nil {
			log.Error().Err(err).
				Str("hook", h.Name()).
				Str("transition", string(t.Kind)).
				Str("tenant_id", t.TenantID.String()).
				Str("order_id", t.OrderID.String()).
				Msg("post-commit hook failed")
		}
	}
}

// JobQueue is the async side of the hooks (implemented by worker.Dispatcher).
type JobQueue interface {
	EnqueueAccounting(ctx context.Context, tenantID, orderID uuid.UUID) error
	EnqueueReceipt(ctx context.Context, tenantID, orderID uuid.UUID) error
}

// EventPublisher is implemented by events.Notifier.
type EventPublisher interface {
	PublishKitchen(ctx context.Context, tenantID uuid.UUID, ev events.OrderUpdate)
	PublishPrintJob(ctx context.Context, tenantID uuid.UUID, job events.PrintJob)
}

// ── accounting ────────────────────────────────────────────────────────────────

type accountingHook struct {
	accounting AccountingService
	queue      JobQueue
}

// NewAccountingHook posts the journal entry of a completed order. When posting
// fails for a transient reason the order is handed to the accounting worker.
func NewAccountingHook(accounting AccountingService, queue JobQueue) Hook {
	return &accountingHook{accounting: accounting, queue: queue}
}

func (h *accountingHook) Name() string { return "accounting" }

func (h *accountingHook) AfterCommit(ctx context.Context, t Transition) error {
	if t.Kind != TransitionCompleted {
		return nil
	}
	_, _, err := h.accounting.PostOrder(ctx, t.TenantID, t.OrderID)
	if err == nil {
		return nil
	}
	if apierror.Is(err, apierror.KindInternalConsistency) || h.queue == nil {
		return err
	}
	if qErr := h.queue.EnqueueAccounting(ctx, t.TenantID, t.OrderID); qErr != nil {
		log.Error().Err(qErr).Str("order_id", t.OrderID.String()).Msg("accounting: enqueue failed, left to reconcile cron")
	}
	return err
}

// ── kitchen ───────────────────────────────────────────────────────────────────

var kitchenStatuses = map[string]bool{
	model.OrderConfirmed: true,
	model.OrderPreparing: true,
	model.OrderReady:     true,
	model.OrderCancelled: true,
}

var kitchenItemStatuses = map[string]bool{
	model.ItemPreparing: true,
	model.ItemReady:     true,
	model.ItemCancelled: true,
}

type kitchenHook struct {
	orders    repository.OrderRepository
	publisher EventPublisher
}

// NewKitchenHook pushes order_update events to the tenant's kitchen displays.
func NewKitchenHook(orders repository.OrderRepository, publisher EventPublisher) Hook {
	return &kitchenHook{orders: orders, publisher: publisher}
}

func (h *kitchenHook) Name() string { return "kitchen" }

func (h *kitchenHook) AfterCommit(ctx context.Context, t Transition) error {
	switch t.Kind {
	case TransitionItemsSent:
	case TransitionStatus:
		if !kitchenStatuses[t.To] {
			return nil
		}
	case TransitionItemStatus:
		if !kitchenItemStatuses[t.To] {
			return nil
		}
	default:
		return nil
	}

	o, err := h.orders.FindByID(ctx, t.TenantID, t.OrderID)
	if err != nil {
		return err
	}
	var only map[uuid.UUID]bool
	if len(t.ItemIDs) > 0 {
		only = idSet(t.ItemIDs)
	}
	h.publisher.PublishKitchen(ctx, t.TenantID, orderUpdate(o, only))
	return nil
}

// ── printer ───────────────────────────────────────────────────────────────────

type printerHook struct {
	orders    repository.OrderRepository
	publisher EventPublisher
}

// NewPrinterHook sends the lines of a new round to the kitchen and bar
// printers, split by the item's category.
func NewPrinterHook(orders repository.OrderRepository, publisher EventPublisher) Hook {
	return &printerHook{orders: orders, publisher: publisher}
}

func (h *printerHook) Name() string { return "printer" }

func (h *printerHook) AfterCommit(ctx context.Context, t Transition) error {
	if t.Kind != TransitionItemsSent {
		return nil
	}
	o, err := h.orders.FindByID(ctx, t.TenantID, t.OrderID)
	if err != nil {
		return err
	}
	sent := idSet(t.ItemIDs)
	byClass := map[string][]events.Line{}
	for _, it := range o.Items {
		if !sent[it.ID] {
			continue
		}
		class := printerClass(it.Item)
		byClass[class] = append(byClass[class], eventLine(it))
	}
	for _, class := range []string{events.PrinterKitchen, events.PrinterBar} {
		lines := byClass[class]
		if len(lines) == 0 {
			continue
		}
		h.publisher.PublishPrintJob(ctx, t.TenantID, events.PrintJob{
			OrderID: o.ID.String(),
			Table:   tableLabel(o),
			Printer: class,
			Items:   lines,
		})
	}
	return nil
}

func printerClass(item *model.Item) string {
	if item != nil && item.Category != nil && item.Category.IsBar {
		return events.PrinterBar
	}
	return events.PrinterKitchen
}

// ── receipt ───────────────────────────────────────────────────────────────────

type receiptHook struct {
	queue JobQueue
}

// NewReceiptHook schedules receipt rendering for completed orders.
func NewReceiptHook(queue JobQueue) Hook {
	return &receiptHook{queue: queue}
}

func (h *receiptHook) Name() string { return "receipt" }

func (h *receiptHook) AfterCommit(ctx context.Context, t Transition) error {
	if t.Kind != TransitionCompleted {
		return nil
	}
	return h.queue.EnqueueReceipt(ctx, t.TenantID, t.OrderID)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func tableLabel(o *model.Order) string {
	if o.Table != nil {
		return o.Table.Number
	}
	return ""
}

func eventLine(it model.OrderItem) events.Line {
	l := events.Line{
		ItemID: it.ItemID.String(),
		Qty:    it.Quantity,
		Notes:  it.Notes,
		Status: it.Status,
	}
	if it.Item != nil {
		l.Item = it.Item.Name
	}
	if it.Variant != nil {
		l.Variant = it.Variant.Name
	}
	for _, a := range it.Addons {
		l.Addons = append(l.Addons, a.Name)
	}
	return l
}

// orderUpdate builds the kitchen payload. A non-nil only restricts the lines.
func orderUpdate(o *model.Order, only map[uuid.UUID]bool) events.OrderUpdate {
	ev := events.OrderUpdate{
		Event:     events.EventOrderUpdate,
		OrderID:   o.ID.String(),
		Status:    o.Status,
		Type:      o.OrderType,
		Table:     tableLabel(o),
		Waiter:    o.WaiterName,
		CreatedAt: o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Items:     []events.Line{},
	}
	for _, it := range o.Items {
		if only != nil && !only[it.ID] {
			continue
		}
		ev.Items = append(ev.Items, eventLine(it))
	}
	return ev
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"restopos/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventOrderUpdate is the only event type kitchen displays receive.
const EventOrderUpdate = "order_update"

// Line is one order line as shown on a display or ticket.
type Line struct {
	ItemID  string   `json:"item_id"`
	Item    string   `json:"item"`
	Variant string   `json:"variant,omitempty"`
	Qty     int      `json:"qty"`
	Notes   string   `json:"notes,omitempty"`
	Addons  []string `json:"addons,omitempty"`
	Status  string   `json:"status,omitempty"`
}

// OrderUpdate is published on the tenant's kitchen topic.
type OrderUpdate struct {
	Event     string `json:"event"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Table     string `json:"table"`
	Waiter    string `json:"waiter"`
	CreatedAt string `json:"created_at"`
	Items     []Line `json:"items"`
}

// PrintJob is published on a printer topic.
type PrintJob struct {
	OrderID     string    `json:"order_id"`
	Table       string    `json:"table"`
	Printer     string    `json:"printer"`
	Items       []Line    `json:"items,omitempty"`
	ReceiptPath string    `json:"receipt_path,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Notifier publishes typed events on a Bus. Publishing is best effort:
// failures are logged and dropped, and a circuit breaker stops hammering a
// bus that is down.
type Notifier struct {
	bus     Bus
	breaker *infra.CircuitBreaker
}

func NewNotifier(bus Bus, breaker *infra.CircuitBreaker) *Notifier {
	return &Notifier{bus: bus, breaker: breaker}
}

// PublishKitchen sends ev to every kitchen display of the tenant.
func (n *Notifier) PublishKitchen(ctx context.Context, tenantID uuid.UUID, ev OrderUpdate) {
	if ev.Event == "" {
		ev.Event = EventOrderUpdate
	}
	n.publish(ctx, KitchenTopic(tenantID), ev)
}

// PublishPrintJob routes job to the tenant's printer of job.Printer.
func (n *Notifier) PublishPrintJob(ctx context.Context, tenantID uuid.UUID, job PrintJob) {
	if job.IssuedAt.IsZero() {
		job.IssuedAt = time.Now().UTC()
	}
	n.publish(ctx, PrinterTopic(tenantID, job.Printer), job)
}

func (n *Notifier) publish(ctx context.Context, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("events: failed to marshal payload")
		return
	}
	err = n.breaker.Execute(func() error {
		return n.bus.Publish(ctx, topic, payload)
	})
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("events: publish dropped")
	}
}

// Subscribe exposes the underlying bus to stream handlers.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	return n.bus.Subscribe(ctx, topic)
}

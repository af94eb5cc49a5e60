// Package events fans order updates out to kitchen displays and printers.
//
// Delivery is broadcast and fire-and-forget: a subscriber only sees messages
// published while it is subscribed, and a slow subscriber drops messages
// rather than stalling publishers.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Printer classes.
const (
	PrinterKitchen = "kitchen"
	PrinterBar     = "bar"
	PrinterFront   = "front"
)

// subscriberBuffer is the per-subscription backlog before messages are dropped.
const subscriberBuffer = 64

// Bus is a topic-addressed broadcast channel.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// KitchenTopic carries every order_update event of a tenant.
func KitchenTopic(tenantID uuid.UUID) string {
	return "kitchen:" + tenantID.String()
}

// PrinterTopic carries print jobs for one printer class of a tenant.
func PrinterTopic(tenantID uuid.UUID, class string) string {
	return fmt.Sprintf("printer:%s:%s", tenantID, class)
}

// ValidPrinterClass reports whether class names a known printer.
func ValidPrinterClass(class string) bool {
	switch class {
	case PrinterKitchen, PrinterBar, PrinterFront:
		return true
	}
	return false
}

// Subscription delivers the messages of one topic until closed.
type Subscription struct {
	ch      chan []byte
	once    sync.Once
	release func() error
	err     error
}

func newSubscription(release func() error) *Subscription {
	return &Subscription{ch: make(chan []byte, subscriberBuffer), release: release}
}

// Messages is closed when the subscription ends.
func (s *Subscription) Messages() <-chan []byte { return s.ch }

// Close releases the underlying transport. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		if s.release != nil {
			s.err = s.release()
		}
	})
	return s.err
}

// offer delivers msg without blocking; it reports false when msg was dropped.
func (s *Subscription) offer(msg []byte) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

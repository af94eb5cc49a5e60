package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Exchange is the topic exchange all POS events are published to.
const Exchange = "pos.events"

// AMQPBus publishes to a RabbitMQ topic exchange. Each subscription gets its
// own exclusive auto-delete queue bound to the topic, so every subscriber
// receives every message.
type AMQPBus struct {
	conn  *amqp.Connection
	mu    sync.Mutex
	pubCh *amqp.Channel
}

func NewAMQPBus(conn *amqp.Connection) (*AMQPBus, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &AMQPBus{conn: conn, pubCh: ch}, nil
}

func (b *AMQPBus) Publish(ctx context.Context, topic string, payload []byte) error {
	// amqp channels are not safe for concurrent publishing.
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pubCh.PublishWithContext(ctx, Exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

func (b *AMQPBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, topic, Exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	s := newSubscription(ch.Close)
	go func() {
		defer close(s.ch)
		for {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if !s.offer(d.Body) {
					log.Warn().Str("topic", topic).Msg("events: slow subscriber, message dropped")
				}
			}
		}
	}()
	return s, nil
}

func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pubCh.Close()
}

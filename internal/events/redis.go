package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus maps topics onto Redis pub/sub channels.
type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topic)
	// Wait for the subscribe confirmation so messages published after
	// Subscribe returns are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	s := newSubscription(ps.Close)
	go func() {
		defer close(s.ch)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = s.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !s.offer([]byte(msg.Payload)) {
					log.Warn().Str("topic", topic).Msg("events: slow subscriber, message dropped")
				}
			}
		}
	}()
	return s, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

package infra

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// NewAMQP dials RabbitMQ, retrying a few times while the broker starts up.
func NewAMQP(url string) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("amqp: dial failed, retrying")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", lastErr)
}

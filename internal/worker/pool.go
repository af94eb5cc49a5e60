package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAccounting = "jobs:accounting"
	QueueReceipt    = "jobs:receipt"

	JobAccounting = "accounting"
	JobReceipt    = "receipt"

	// maxJobAttempts covers the first try plus two backoff retries (1s, 2s).
	maxJobAttempts = 3
)

// retryBaseDelay is the first backoff step; tests shrink it.
var retryBaseDelay = time.Second

// popErrorDelay is how long a worker waits after a failed BRPOP.
var popErrorDelay = 2 * time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// OrderJob is the payload of both accounting and receipt jobs.
type OrderJob struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"order_id"`
}

func (p OrderJob) ids() (tenantID, orderID uuid.UUID, err error) {
	if tenantID, err = uuid.Parse(p.TenantID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid tenant_id %q", p.TenantID)
	}
	if orderID, err = uuid.Parse(p.OrderID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid order_id %q", p.OrderID)
	}
	return tenantID, orderID, nil
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueAccounting schedules journal posting for a completed order.
func (d *Dispatcher) EnqueueAccounting(ctx context.Context, tenantID, orderID uuid.UUID) error {
	return d.enqueue(ctx, QueueAccounting, JobAccounting, OrderJob{TenantID: tenantID.String(), OrderID: orderID.String()})
}

// EnqueueReceipt schedules receipt rendering for a completed order.
func (d *Dispatcher) EnqueueReceipt(ctx context.Context, tenantID, orderID uuid.UUID) error {
	return d.enqueue(ctx, QueueReceipt, JobReceipt, OrderJob{TenantID: tenantID.String(), OrderID: orderID.String()})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	encoded, err := encodeJob(jobType, payload)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

func encodeJob(jobType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Job{Type: jobType, Payload: data})
}

// Handler processes one job payload. A returned error is retried unless it
// is marked Permanent.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying: the job goes straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Pool runs the job handlers.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	// deadLetter defaults to SendToDLQ on rdb.
	deadLetter func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int)
	// pop defaults to a 5s BRPOP over both queues.
	pop func(ctx context.Context) ([]string, error)
}

func NewPool(rdb *redis.Client, handlers map[string]Handler) *Pool {
	p := &Pool{rdb: rdb, handlers: handlers}
	p.deadLetter = func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
		SendToDLQ(ctx, rdb, queue, jobType, payload, reason, attempts)
	}
	p.pop = func(ctx context.Context) ([]string, error) {
		return rdb.BRPop(ctx, 5*time.Second, QueueAccounting, QueueReceipt).Result()
	}
	return p
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost no CPU.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.pop(ctx)
			if err != nil {
				// redis.Nil is the BRPOP timeout
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: dequeue failed, backing off")
					select {
					case <-ctx.Done():
					case <-time.After(popErrorDelay):
					}
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.deadLetter(ctx, queue, "", json.RawMessage(raw), "malformed job: "+err.Error(), 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for job type")
		p.deadLetter(ctx, queue, job.Type, job.Payload, "unknown job type", 0)
		return
	}

	attempts := 0
	err := withRetry(ctx, maxJobAttempts, func(attempt int) error {
		attempts = attempt + 1
		err := h.Process(ctx, job.Payload)
		if err != nil && !isPermanent(err) {
			log.Warn().Err(err).
				Str("type", job.Type).
				Int("attempt", attempts).
				Msg("job attempt failed")
		}
		return err
	})
	if err == nil {
		log.Debug().Str("type", job.Type).Int("attempts", attempts).Msg("job done")
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-retry: put the job back for the next process.
		if perr := p.rdb.LPush(context.WithoutCancel(ctx), queue, raw).Err(); perr != nil {
			log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job on shutdown")
		}
		return
	}
	p.deadLetter(ctx, queue, job.Type, job.Payload, err.Error(), attempts)
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2×base.
// A Permanent error stops immediately. Returns the last error.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryBaseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(err) {
			return err
		}
	}
	return lastErr
}

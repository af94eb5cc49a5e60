package worker

// reconcile_cron.go
// Background goroutine that periodically posts journal entries for completed
// orders that still have none: accounting jobs dropped by a Redis outage, or
// parked in the DLQ, end up here.

import (
	"context"
	"time"

	"restopos/internal/apierror"
	"restopos/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	defaultReconcileInterval = 60 * time.Second
	reconcileBatchSize       = 50
)

// ReconcileCronConfig holds all dependencies for the reconcile goroutine.
type ReconcileCronConfig struct {
	Orders   repository.OrderRepository
	Poster   OrderPoster
	Interval time.Duration
}

// StartReconcileCron ticks every cfg.Interval until ctx is cancelled.
func StartReconcileCron(ctx context.Context, cfg ReconcileCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("reconcile_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconcile_cron: shutting down")
				return
			case <-ticker.C:
				reconcileOnce(ctx, cfg)
			}
		}
	}()
}

// reconcileOnce pages through every unposted order and returns how many
// entries it created. The cursor moves past orders that fail, so a run of
// permanently failing orders cannot hide the ones behind them.
func reconcileOnce(ctx context.Context, cfg ReconcileCronConfig) int {
	posted, failed := 0, 0
	var cursor repository.OrderCursor
	for ctx.Err() == nil {
		orders, err := cfg.Orders.ListCompletedWithoutEntry(ctx, cursor, reconcileBatchSize)
		if err != nil {
			log.Error().Err(err).Msg("reconcile_cron: failed to query unposted orders")
			break
		}
		if len(orders) == 0 {
			break
		}
		log.Info().Int("count", len(orders)).Msg("reconcile_cron: posting missing journal entries")

		for i := range orders {
			if ctx.Err() != nil {
				break
			}
			o := &orders[i]
			cursor = repository.CursorAfter(o)
			_, ok, err := cfg.Poster.PostOrder(ctx, o.TenantID, o.ID)
			if err != nil {
				failed++
				ev := log.Warn()
				if apierror.Is(err, apierror.KindInternalConsistency) {
					ev = log.Error()
				}
				ev.Err(err).
					Str("tenant_id", o.TenantID.String()).
					Str("order_id", o.ID.String()).
					Msg("reconcile_cron: post failed")
				continue
			}
			if ok {
				posted++
			}
		}
		if len(orders) < reconcileBatchSize {
			break
		}
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("posted", posted).Msg("reconcile_cron: run finished with failures")
	}
	return posted
}

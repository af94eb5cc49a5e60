package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restopos/internal/authz"
	"restopos/internal/config"
	"restopos/internal/events"
	"restopos/internal/infra"
	"restopos/internal/repository"
	"restopos/internal/router"
	"restopos/internal/service"
	"restopos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger. dev: pretty, prod: JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	shutdownTracing, err := infra.SetupTracing(context.Background(), infra.TracingConfig{
		Endpoint:   cfg.OtelEndpoint,
		Insecure:   cfg.OtelInsecure,
		SampleRate: cfg.OtelSampleRate,
		Env:        cfg.Env,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	policy, err := authz.LoadPolicy(cfg.RBACPolicyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RBACPolicyPath).Msg("failed to load rbac policy")
	}

	bus, err := newBus(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("event_bus", cfg.EventBus).Msg("failed to start event bus")
	}
	defer bus.Close()
	notifier := events.NewNotifier(bus, infra.NewCircuitBreaker(infra.DefaultCBConfig("event-bus")))

	// Start goroutine worker pool for async tasks (journal posting, receipts).
	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tx := repository.NewTransactor(db, cfg.LockTimeout)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	accountingSvc := service.NewAccountingService(tx, orderRepo, repository.NewAccountingRepository(db))

	pool := worker.NewPool(rdb, map[string]worker.Handler{
		worker.JobAccounting: worker.NewAccountingWorker(accountingSvc),
		worker.JobReceipt:    worker.NewReceiptWorker(orderRepo, paymentRepo, notifier, cfg.ReceiptStoragePath),
	})
	pool.Start(ctx, cfg.WorkerPoolSize)

	worker.StartReconcileCron(ctx, worker.ReconcileCronConfig{
		Orders:   orderRepo,
		Poster:   accountingSvc,
		Interval: cfg.AccountingReconcileInterval,
	})

	r := router.New(cfg, db, rdb, notifier, policy)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: kitchen and printer streams stay open.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("event_bus", cfg.EventBus).Msgf("restopos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush spans")
	}
	log.Info().Msg("server exited")
}

func newBus(cfg *config.Config, rdb *redis.Client) (events.Bus, error) {
	switch cfg.EventBus {
	case "redis", "":
		return events.NewRedisBus(rdb), nil
	case "amqp":
		conn, err := infra.NewAMQP(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		return events.NewAMQPBus(conn)
	case "memory":
		return events.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
	}
}

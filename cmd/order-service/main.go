package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/order-engine/internal/clock"
	"github.com/dmehra2102/order-engine/internal/config"
	"github.com/dmehra2102/order-engine/internal/order/application"
	ordergrpc "github.com/dmehra2102/order-engine/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/order-engine/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/order-engine/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/order-engine/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/order-engine/migrations"
	"github.com/dmehra2102/order-engine/pkg/idempotency"
	"github.com/dmehra2102/order-engine/pkg/logging"
	"github.com/dmehra2102/order-engine/pkg/outbox"
	"github.com/dmehra2102/order-engine/pkg/shutdown"
	"github.com/dmehra2102/order-engine/pkg/tracing"
)

func main() {
	cfg, err := config.LoadOrderService()
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "order-service", cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	// Kafka producer
	if err := orderkafka.EnsureTopic(ctx, cfg.KafkaBrokers[0], cfg.OrderEventsTopic, 3); err != nil {
		log.Warn("kafka topic setup failed, relying on auto creation", "topic", cfg.OrderEventsTopic, "err", err)
	}
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Notification client
	conn, err := ordergrpc.Dial(cfg.NotificationAddr)
	if err != nil {
		log.Error("notification client init failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Store, engine & outbox relay
	store := orderpg.NewStore(log, pool)
	svc := application.NewService(log, store, clock.NewSystem())

	dispatch := outbox.NewDispatcher(log, cfg.NotificationTimeout,
		ordergrpc.NewNotificationClient(log, conn),
		outbox.NewKafkaSink(writer, cfg.OrderEventsTopic),
	)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(store), dispatch, "order-service-"+uuid.NewString(),
		outbox.WithInterval(cfg.RelayInterval),
		outbox.WithBatchSize(cfg.RelayBatchSize),
	)

	// Idempotency
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	handler := orderhttp.NewHandler(log, svc, idem)

	// HTTP server
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		log.Warn("relay did not stop in time")
	}
	log.Info("order-service shutdown complete")
}

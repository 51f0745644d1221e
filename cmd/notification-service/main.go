package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/order-engine/internal/config"
	"github.com/dmehra2102/order-engine/internal/notification/application"
	notificationgrpc "github.com/dmehra2102/order-engine/internal/notification/infrastructure/grpc"
	notificationkafka "github.com/dmehra2102/order-engine/internal/notification/infrastructure/kafka"
	"github.com/dmehra2102/order-engine/pkg/idempotency"
	"github.com/dmehra2102/order-engine/pkg/logging"
	"github.com/dmehra2102/order-engine/pkg/shutdown"
	"github.com/dmehra2102/order-engine/pkg/tracing"
)

func main() {
	cfg, err := config.LoadNotificationService()
	if err != nil {
		logging.New("info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "notification-service", cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	svc := application.NewService(log)

	// gRPC server
	gs, err := notificationgrpc.Run(cfg.GRPCAddr, notificationgrpc.NewServer(log, svc))
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}

	// Optional stream subscriber
	if len(cfg.KafkaBrokers) > 0 {
		var idem notificationkafka.Deduper
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		}
		reader := notificationkafka.NewReader(cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.ConsumerGroup)
		consumer := notificationkafka.NewConsumer(log, reader, svc, idem)
		go func() {
			log.Info("consuming order events", "topic", cfg.OrderEventsTopic, "group", cfg.ConsumerGroup)
			if err := consumer.Run(ctx); err != nil {
				log.Error("consumer stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()

	stopped := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		gs.Stop()
	}
	log.Info("notification-service shutdown complete")
}

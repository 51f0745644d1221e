package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-engine/internal/notification/application"
	"github.com/dmehra2102/order-engine/pkg/idempotency"
	"github.com/dmehra2102/order-engine/pkg/tracing"
)

const (
	orderCreated       = "OrderCreated"
	orderStatusChanged = "OrderStatusChanged"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper guards against handling a redelivered message twice.
type Deduper interface {
	Claim(ctx context.Context, key string) ([]byte, error)
	Complete(ctx context.Context, key string, response []byte) error
	Release(ctx context.Context, key string) error
}

// Consumer feeds order events from the stream into the notification service.
type Consumer struct {
	log    *slog.Logger
	reader MessageReader
	svc    *application.Service
	idem   Deduper
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// NewConsumer wires a reader to the service. idem may be nil.
func NewConsumer(log *slog.Logger, reader MessageReader, svc *application.Service, idem Deduper) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("notification-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	key := fmt.Sprintf("notify:%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
	if c.idem != nil {
		stored, err := c.idem.Claim(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInProgress), err == nil && stored != nil:
			c.log.Info("duplicate message skipped", "key", key)
			return
		case err != nil:
			c.log.Warn("idempotency check failed", "key", key, "err", err)
			key = ""
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent")
	defer span.End()

	if err := c.dispatch(msgCtx, headerValue(msg.Headers, "event_type"), msg.Value); err != nil {
		span.RecordError(err)
		c.log.Error("order event not handled", "offset", msg.Offset, "key", string(msg.Key), "err", err)
		if c.idem != nil && key != "" {
			_ = c.idem.Release(ctx, key)
		}
		return
	}
	if c.idem != nil && key != "" {
		if err := c.idem.Complete(ctx, key, []byte(strconv.FormatInt(msg.Offset, 10))); err != nil {
			c.log.Warn("idempotency complete failed", "key", key, "err", err)
		}
	}
}

type orderEvent struct {
	OrderID     int64  `json:"order_id"`
	ClientID    int64  `json:"client_id"`
	ClientName  string `json:"client_name"`
	Status      string `json:"status"`
	TotalAmount string `json:"total_amount"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Message     string `json:"message"`
}

func (c *Consumer) dispatch(ctx context.Context, eventType string, payload []byte) error {
	var ev orderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("unmarshal %s: %w", eventType, err)
	}

	var err error
	switch eventType {
	case orderCreated:
		_, err = c.svc.OrderCreated(ctx, application.OrderCreated{
			OrderID:     ev.OrderID,
			ClientID:    ev.ClientID,
			ClientName:  ev.ClientName,
			Status:      ev.Status,
			TotalAmount: ev.TotalAmount,
			Message:     ev.Message,
		})
	case orderStatusChanged:
		_, err = c.svc.StatusChanged(ctx, application.StatusChanged{
			OrderID:    ev.OrderID,
			ClientID:   ev.ClientID,
			ClientName: ev.ClientName,
			OldStatus:  ev.OldStatus,
			NewStatus:  ev.NewStatus,
			Message:    ev.Message,
		})
	default:
		c.log.Debug("event type ignored", "type", eventType)
	}
	return err
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}

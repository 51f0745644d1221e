package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/order-engine/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Store interface {
	ClaimBatch(ctx context.Context, relayID string, batchSize int) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// Relay moves committed events from the store to the dispatcher. Each event is
// attempted once: it ends up sent or failed and is not retried.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		tracer:    otel.Tracer("outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("relay started", "relay_id", r.relayID, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay flush error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Flush processes one batch and returns how many events it claimed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.ClaimBatch(ctx, r.relayID, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	settleCtx := context.WithoutCancel(ctx)

	sent := make([]int64, 0, len(events))
	for _, ev := range events {
		if err := r.dispatchOne(ctx, ev); err != nil {
			if markErr := r.store.MarkFailed(settleCtx, ev.ID, err.Error()); markErr != nil {
				r.log.Error("relay mark failed error", "event_id", ev.ID, "err", markErr)
			}
			continue
		}
		sent = append(sent, ev.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(settleCtx, sent); err != nil {
			return len(events), err
		}
	}
	return len(events), nil
}

func (r *Relay) dispatchOne(ctx context.Context, ev Event) error {
	ctx = tracing.ContextWithTraceparent(ctx, ev.Traceparent)
	ctx, span := r.tracer.Start(ctx, "outbox.dispatch", trace.WithAttributes(
		attribute.Int64("outbox.event_id", ev.ID),
		attribute.String("outbox.event_type", ev.Type),
		attribute.String("outbox.aggregate_id", ev.AggregateID),
	))
	defer span.End()

	err := r.dispatch.Dispatch(ctx, ev)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

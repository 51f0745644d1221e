package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/order-engine/pkg/tracing"
	"github.com/segmentio/kafka-go"
)

const defaultDeliveryTimeout = 3 * time.Second

// Sink receives dispatched events. Deliver is called at most once per event.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// DeliveryError reports that a sink did not accept an event. It is logged and
// recorded on the outbox row but never reaches the code that produced the event.
type DeliveryError struct {
	Sink    string
	EventID int64
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver event %d to %s: %v", e.EventID, e.Sink, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Dispatcher struct {
	log     *slog.Logger
	sinks   []Sink
	timeout time.Duration
}

func NewDispatcher(log *slog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Dispatcher{log: log, sinks: sinks, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range d.sinks {
		if err := d.deliver(ctx, sink, event); err != nil {
			d.log.Error("notification delivery failed",
				"sink", sink.Name(),
				"event_id", event.ID,
				"type", event.Type,
				"aggregate_id", event.AggregateID,
				"err", err,
			)
			errs = append(errs, &DeliveryError{Sink: sink.Name(), EventID: event.ID, Err: err})
			continue
		}
		d.log.Info("notification delivered", "sink", sink.Name(), "event_id", event.ID, "type", event.Type)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, event Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Deliver(ctx, event)
}

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka:" + k.topic }

func (k *KafkaSink) Deliver(ctx context.Context, event Event) error {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "aggregate_type", Value: []byte(event.AggregateType)},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	return k.producer.WriteMessages(ctx, kafka.Message{
		Topic:   k.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	})
}

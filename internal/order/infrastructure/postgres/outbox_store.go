package postgres

import (
	"context"
	"fmt"

	"github.com/dmehra2102/order-engine/pkg/outbox"
)

const orderAggregate = "order"

// Record appends an event in the caller's transaction; the relay sees it only after commit.
func (s *Store) Record(ctx context.Context, eventType, aggregateID string, payload []byte, traceparent string) error {
	_, err := s.exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent)
		VALUES ($1, $2, $3, $4, $5)`,
		orderAggregate, aggregateID, eventType, payload, traceparent)
	if err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

type OutboxStore struct {
	store *Store
}

func NewOutboxStore(store *Store) *OutboxStore {
	return &OutboxStore{store: store}
}

// ClaimBatch moves up to batchSize pending events to in_progress. Claimed rows are
// never returned again, whatever happens to their delivery.
func (o *OutboxStore) ClaimBatch(ctx context.Context, relayID string, batchSize int) ([]outbox.Event, error) {
	var events []outbox.Event
	err := o.store.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := o.store.query(txCtx, `
			SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
			FROM outbox
			WHERE status = 'pending'
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT $1`, batchSize)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ev outbox.Event
			if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &ev.Traceparent, &ev.CreatedAt); err != nil {
				return err
			}
			ev.Status = outbox.StatusInProgress
			ev.RelayID = relayID
			events = append(events, ev)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		if len(events) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		_, err = o.store.exec(txCtx, `UPDATE outbox SET status = 'in_progress', relay_id = $1 WHERE id = ANY($2)`, relayID, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	return events, nil
}

func (o *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := o.store.exec(ctx, `UPDATE outbox SET status = 'sent', processed_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

func (o *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := o.store.exec(ctx, `UPDATE outbox SET status = 'failed', last_error = $2, processed_at = NOW() WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

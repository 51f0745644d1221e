package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "\x00pending"

var ErrInProgress = errors.New("idempotency: request with this key is still in progress")

// Store remembers the outcome of requests by key so a retried request
// returns the first response instead of running again.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}

// Claim reserves key for the caller. It returns (nil, nil) when the caller now
// owns the key, the stored response when a previous request completed, and
// ErrInProgress while another request holds the claim.
func (s *Store) Claim(ctx context.Context, key string) ([]byte, error) {
	for range 2 {
		ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", key, err)
		}
		if ok {
			return nil, nil
		}

		val, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Released or expired between the two calls.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if string(val) == pendingMarker {
			return nil, ErrInProgress
		}
		return val, nil
	}
	return nil, ErrInProgress
}

// Complete stores the response for a claimed key.
func (s *Store) Complete(ctx context.Context, key string, response []byte) error {
	if err := s.rdb.Set(ctx, key, response, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release drops a claim so the request may be retried, used when it failed.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/order-engine/pkg/idempotency"
	"github.com/dmehra2102/order-engine/test/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	rdb := integration.NewRedisClient(t)
	store := idempotency.NewStore(rdb, time.Minute)
	ctx := context.Background()

	key := store.Key("create-order", "abc-123")
	assert.Equal(t, "idem:create-order:abc-123", key)

	resp, err := store.Claim(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, resp)

	_, err = store.Claim(ctx, key)
	require.ErrorIs(t, err, idempotency.ErrInProgress)

	require.NoError(t, store.Complete(ctx, key, []byte(`{"id":1}`)))

	resp, err = store.Claim(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(resp))

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestStore_Release(t *testing.T) {
	rdb := integration.NewRedisClient(t)
	store := idempotency.NewStore(rdb, time.Minute)
	ctx := context.Background()

	key := store.Key("create-order", "retry-me")
	_, err := store.Claim(ctx, key)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, key))

	resp, err := store.Claim(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, resp)
}

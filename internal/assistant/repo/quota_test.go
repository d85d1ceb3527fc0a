package repo

import (
	"context"
	"testing"
	"time"

	"github.com/finpal-core-poc-v1/assistant/internal/assistant/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQuotaCounter_ExhaustsAfterLimit(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := NewRedisQuotaCounter(rdb, model.QuotaConfig{DailyLimit: 2})
	q.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	left, err := q.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	for i := 0; i < 2; i++ {
		ok, err := q.TryConsume(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := q.TryConsume(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	left, err = q.Remaining(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	assert.Equal(t, quotaKeyTTL, mr.TTL("quota:u1:2026-03-14"))

	// a new day starts a fresh counter
	q.now = func() time.Time { return time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC) }
	ok, err = q.TryConsume(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisQuotaCounter_PremiumIsUnlimited(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := NewRedisQuotaCounter(rdb, model.QuotaConfig{DailyLimit: 0, Premium: true})
	ctx := context.Background()

	ok, err := q.TryConsume(ctx, "vip")
	require.NoError(t, err)
	assert.True(t, ok)
	left, err := q.Remaining(ctx, "vip")
	require.NoError(t, err)
	assert.Equal(t, -1, left)
	assert.Empty(t, mr.Keys())
}

func TestRedisQuotaCounter_ConnectionFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := NewRedisQuotaCounter(rdb, model.QuotaConfig{DailyLimit: 5})
	mr.Close()

	_, err := q.TryConsume(context.Background(), "u1")
	require.Error(t, err)
}

func TestMemoryQuotaCounter(t *testing.T) {
	q := NewMemoryQuotaCounter(model.QuotaConfig{DailyLimit: 1})
	ctx := context.Background()

	ok, _ := q.TryConsume(ctx, "u")
	assert.True(t, ok)
	ok, _ = q.TryConsume(ctx, "u")
	assert.False(t, ok)
	left, _ := q.Remaining(ctx, "u")
	assert.Equal(t, 0, left)

	ok, _ = q.TryConsume(ctx, "other")
	assert.True(t, ok)
}

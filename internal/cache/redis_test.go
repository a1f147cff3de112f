package cache

import (
	"context"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habibeat/backend/internal/domain"
)

func TestNoopClosingCacheNeverHits(t *testing.T) {
	var c NoopClosingCache
	period := domain.Period{Year: 2026, Month: time.September}

	require.NoError(t, c.Set(context.Background(), period, domain.Closing{}, time.Minute))
	got, ok, err := c.Get(context.Background(), period)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisClosingCacheRoundTrip(t *testing.T) {
	url := os.Getenv("HABIBEAT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HABIBEAT_TEST_REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisClosingCache(client)
	period := domain.Period{Year: 1999, Month: time.Month(time.Now().Nanosecond()%12 + 1)}
	t.Cleanup(func() { client.Del(ctx, keyPrefix+period.String()) })

	_, ok, err := c.Get(ctx, period)
	require.NoError(t, err)
	assert.False(t, ok)

	closing := domain.Closing{}
	closing.Set(domain.SectionBooth, "prd-1", decimal.RequireFromString("7.25"))
	require.NoError(t, c.Set(ctx, period, closing, time.Minute))

	got, ok, err := c.Get(ctx, period)
	require.NoError(t, err)
	require.True(t, ok)
	value, found := got.Lookup(domain.SectionBooth, "prd-1")
	assert.True(t, found)
	assert.True(t, decimal.RequireFromString("7.25").Equal(value))
}

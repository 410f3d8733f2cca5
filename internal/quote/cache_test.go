package quote

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingQuoter answers from a fixed table and counts calls
type countingQuoter struct {
	mu     sync.Mutex
	calls  int
	quotes map[string]Quote
}

func (c *countingQuoter) Lookup(_ context.Context, symbol string) (Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	q, ok := c.quotes[symbol]
	if !ok {
		return Quote{}, ErrUnknownSymbol
	}
	return q, nil
}

// brokenCache fails every operation
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (Quote, error) { return Quote{}, errors.New("down") }
func (brokenCache) Set(context.Context, Quote, time.Duration) error { return errors.New("down") }

func testEntry() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func TestCached_ServesFromCache(t *testing.T) {
	upstream := &countingQuoter{quotes: map[string]Quote{
		"AAPL": {Symbol: "AAPL", Name: "Apple", Price: decimal.NewFromInt(150)},
	}}
	cache, err := NewLRUCache(8)
	require.NoError(t, err)
	cached := NewCached(upstream, cache, time.Minute, testEntry())

	for i := 0; i < 3; i++ {
		q, err := cached.Lookup(context.Background(), "aapl")
		require.NoError(t, err)
		assert.Equal(t, "Apple", q.Name)
	}
	assert.Equal(t, 1, upstream.calls)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	upstream := &countingQuoter{quotes: map[string]Quote{}}
	cache, err := NewLRUCache(8)
	require.NoError(t, err)
	cached := NewCached(upstream, cache, time.Minute, testEntry())

	for i := 0; i < 2; i++ {
		_, err := cached.Lookup(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrUnknownSymbol)
	}
	assert.Equal(t, 2, upstream.calls)
}

func TestCached_BrokenCacheFallsThrough(t *testing.T) {
	upstream := &countingQuoter{quotes: map[string]Quote{
		"TSLA": {Symbol: "TSLA", Name: "Tesla", Price: decimal.NewFromInt(250)},
	}}
	cached := NewCached(upstream, brokenCache{}, time.Minute, testEntry())

	q, err := cached.Lookup(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", q.Symbol)
}

func TestLRUCache_Expiry(t *testing.T) {
	cache, err := NewLRUCache(8)
	require.NoError(t, err)

	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	q := Quote{Symbol: "AAPL", Price: decimal.NewFromInt(1)}
	require.NoError(t, cache.Set(context.Background(), q, time.Minute))

	_, err = cache.Get(context.Background(), "AAPL")
	require.NoError(t, err)

	cache.mu.Lock()
	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	cache.mu.Unlock()

	_, err = cache.Get(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLRUCache_InvalidSize(t *testing.T) {
	_, err := NewLRUCache(0)
	assert.Error(t, err)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client)
	defer client.Del(ctx, keyPrefix+"REDISTEST")

	_, err := cache.Get(ctx, "REDISTEST")
	assert.ErrorIs(t, err, ErrCacheMiss)

	q := Quote{Symbol: "REDISTEST", Name: "Redis Test", Price: decimal.RequireFromString("12.34")}
	require.NoError(t, cache.Set(ctx, q, time.Minute))

	got, err := cache.Get(ctx, "REDISTEST")
	require.NoError(t, err)
	assert.Equal(t, "Redis Test", got.Name)
	assert.True(t, got.Price.Equal(q.Price))
}

package quote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "quote:"

// ErrCacheMiss is returned by a Cache without an entry for the symbol
var ErrCacheMiss = errors.New("quote cache miss")

// Cache stores recent quotes by symbol
type Cache interface {
	Get(ctx context.Context, symbol string) (Quote, error)
	Set(ctx context.Context, q Quote, ttl time.Duration) error
}

// Cached serves lookups from a Cache and falls back to the next Quoter.
// Failed lookups are never cached. Cache errors only cost a remote call.
type Cached struct {
	next   Quoter
	cache  Cache
	ttl    time.Duration
	logger *logrus.Entry
}

func NewCached(next Quoter, cache Cache, ttl time.Duration, logger *logrus.Entry) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	q, err := c.cache.Get(ctx, symbol)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.WithField("symbol", symbol).WithError(err).Warn("quote cache read failed")
	}

	q, err = c.next.Lookup(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	if err := c.cache.Set(ctx, q, c.ttl); err != nil {
		c.logger.WithField("symbol", symbol).WithError(err).Warn("quote cache write failed")
	}
	return q, nil
}

// RedisCache keeps quotes as JSON strings with a TTL
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, symbol string) (Quote, error) {
	payload, err := r.client.Get(ctx, keyPrefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		return Quote{}, ErrCacheMiss
	}
	if err != nil {
		return Quote{}, err
	}
	var q Quote
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (r *RedisCache) Set(ctx context.Context, q Quote, ttl time.Duration) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+q.Symbol, payload, ttl).Err()
}

// LRUCache is the in-process cache used when Redis is not configured
type LRUCache struct {
	entries *lru.Cache
	now     func() time.Time
	mu      sync.Mutex // guards now in tests
}

var _ Cache = (*LRUCache)(nil)

type lruEntry struct {
	quote   Quote
	expires time.Time
}

func NewLRUCache(size int) (*LRUCache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries, now: time.Now}, nil
}

func (l *LRUCache) clock() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now()
}

func (l *LRUCache) Get(_ context.Context, symbol string) (Quote, error) {
	v, ok := l.entries.Get(symbol)
	if !ok {
		return Quote{}, ErrCacheMiss
	}
	e := v.(lruEntry)
	if !l.clock().Before(e.expires) {
		l.entries.Remove(symbol)
		return Quote{}, ErrCacheMiss
	}
	return e.quote, nil
}

func (l *LRUCache) Set(_ context.Context, q Quote, ttl time.Duration) error {
	l.entries.Add(q.Symbol, lruEntry{quote: q, expires: l.clock().Add(ttl)})
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/atharvakonge/papertrade/internal/logging"
	"github.com/atharvakonge/papertrade/internal/quote"
	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// envFlag is shared by every command
type envFlag struct {
	envFile string
}

func (e *envFlag) load() (*config.Config, error) {
	return config.Load(e.envFile)
}

// connectRedis returns nil when Redis is not configured
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// newQuoter builds the API client behind a Redis or in-process cache
func newQuoter(cfg config.QuoteConfig, rdb *redis.Client, logger *logrus.Logger) (quote.Quoter, error) {
	client := quote.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)

	var cache quote.Cache
	if rdb != nil {
		cache = quote.NewRedisCache(rdb)
	} else {
		lru, err := quote.NewLRUCache(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("quote cache: %w", err)
		}
		cache = lru
	}
	return quote.NewCached(client, cache, cfg.CacheTTL, logging.Component(logger, "quote")), nil
}

func newSessionStore(cfg config.SessionConfig, rdb *redis.Client) (session.Store, error) {
	if rdb != nil {
		return session.NewRedisStore(rdb), nil
	}
	return session.NewMemoryStore(cfg.CacheSize)
}

package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores schema lookups. Entries never expire; a new fingerprint
// produces new keys and old entries are simply never read again.
type Cache interface {
	Get(ctx context.Context, key string) ([]string, bool, error)
	Set(ctx context.Context, key string, names []string) error
}

// MemoryCache is a per-process LRU cache.
type MemoryCache struct {
	lru *lru.Cache[string, []string]
}

func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("create schema lru: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	names, ok := c.lru.Get(key)
	return names, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, names []string) error {
	c.lru.Add(key, append([]string(nil), names...))
	return nil
}

// RedisCache shares schema lookups between API instances.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, fmt.Errorf("decode cached schema %s: %w", key, err)
	}
	return names, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, names []string) error {
	raw, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode schema %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

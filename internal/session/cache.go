// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// # Cache Infrastructure Handle

// Cache is the raw byte-level contract against one named cache.
//
// Implementations must be safe for concurrent use.
type Cache interface {

	/*
		Get fetches the raw value stored under key.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - []byte: Stored value, nil on miss
		  - bool: true on hit
		  - error: Connectivity failures
	*/
	Get(context context.Context, key string) ([]byte, bool, error)

	/*
		Set stores a raw value under key with an optional TTL (0 = no expiry).

		Parameters:
		  - context: context.Context
		  - key: string
		  - value: []byte
		  - ttl: time.Duration

		Returns:
		  - error: Connectivity failures
	*/
	Set(context context.Context, key string, value []byte, ttl time.Duration) error

	/*
		Delete removes the given keys.

		Parameters:
		  - context: context.Context
		  - keys: ...string

		Returns:
		  - int64: Number of keys actually removed
		  - error: Connectivity failures
	*/
	Delete(context context.Context, keys ...string) (int64, error)

	/*
		MGet fetches multiple keys in one round trip.

		Parameters:
		  - context: context.Context
		  - keys: ...string

		Returns:
		  - map[string][]byte: Present entries only; misses are omitted
		  - error: Connectivity failures
	*/
	MGet(context context.Context, keys ...string) (map[string][]byte, error)
}

// Provider exposes "get a named cache by string name; nil if absent."
//
// This is the only thing the engine consumes from the cache infrastructure.
type Provider interface {
	Cache(name string) Cache
}

// # Redis Provider

// RedisProvider implements [Provider] over a shared go-redis client.
//
// Only caches declared at construction time resolve; unknown names return
// nil, which downstream layers treat as "cache absent, silently no-op".
type RedisProvider struct {
	client   *redis.Client
	declared map[string]struct{}
}

// NewRedisProvider wraps a Redis client and declares the resolvable cache names.
func NewRedisProvider(client *redis.Client, names ...string) *RedisProvider {
	declared := make(map[string]struct{}, len(names))
	for _, name := range names {
		declared[name] = struct{}{}
	}
	return &RedisProvider{client: client, declared: declared}
}

// Cache implements [Provider]. Returns nil for undeclared names.
func (provider *RedisProvider) Cache(name string) Cache {
	if provider == nil || provider.client == nil {
		return nil
	}
	if _, found := provider.declared[name]; !found {
		return nil
	}
	return &redisCache{client: provider.client, name: name}
}

// redisCache namespaces every key under "vaultiq:{cacheName}:".
type redisCache struct {
	client *redis.Client
	name   string
}

func (cache *redisCache) namespaced(key string) string {
	return fmt.Sprintf("vaultiq:%s:%s", cache.name, key)
}

// Get implements [Cache].
func (cache *redisCache) Get(context context.Context, key string) ([]byte, bool, error) {
	value, err := cache.client.Get(context, cache.namespaced(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis_cache_get_failed: %w", err)
	}
	return value, true, nil
}

// Set implements [Cache].
func (cache *redisCache) Set(context context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.client.Set(context, cache.namespaced(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache_set_failed: %w", err)
	}
	return nil
}

// Delete implements [Cache].
func (cache *redisCache) Delete(context context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = cache.namespaced(key)
	}

	removed, err := cache.client.Del(context, namespaced...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_cache_delete_failed: %w", err)
	}
	return removed, nil
}

// MGet implements [Cache].
func (cache *redisCache) MGet(context context.Context, keys ...string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = cache.namespaced(key)
	}

	values, err := cache.client.MGet(context, namespaced...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_cache_mget_failed: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		// go-redis returns strings for MGET values.
		if text, ok := raw.(string); ok {
			result[keys[i]] = []byte(text)
		}
	}
	return result, nil
}

// # Family Cache Access Layer

// familyCache is the typed, absent-tolerant access layer instantiated once
// per data family.
//
// # Failure Model
//
// If the named cache is absent at construction, every operation silently
// no-ops, returning empty/nil/false. This lets the store layer execute
// uniformly whether caching is configured or not. No error ever escapes:
// transient cache failures are logged and swallowed — the cache tier is
// best-effort by contract.
type familyCache struct {
	family Family
	name   string
	cache  Cache // nil when the named cache is absent
	logger *slog.Logger
}

// newFamilyCache resolves the family's named cache from the provider.
//
// Absence is the normal degraded path: logged at info, never warn.
func newFamilyCache(family Family, name string, provider Provider, logger *slog.Logger) *familyCache {
	fc := &familyCache{family: family, name: name, logger: logger}

	if provider != nil {
		fc.cache = provider.Cache(name)
	}

	if fc.cache == nil {
		logger.Info("session_cache_absent_fallback",
			slog.String("family", string(family)),
			slog.String("cache", name),
		)
		return fc
	}

	logger.Info("session_cache_initialized",
		slog.String("family", string(family)),
		slog.String("cache", name),
	)
	return fc
}

// absent reports whether the cache tier is missing for this family.
func (fc *familyCache) absent() bool { return fc.cache == nil }

// put JSON-encodes the value and stores it under key.
func (fc *familyCache) put(context context.Context, key string, value any) {
	if fc.absent() {
		return
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		fc.logger.Warn("session_cache_encode_failed",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return
	}

	if err := fc.cache.Set(context, key, encoded, 0); err != nil {
		fc.logger.Warn("session_cache_put_failed",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// get decodes the entry under key into target. Returns false on miss,
// absence, or any cache failure.
func (fc *familyCache) get(context context.Context, key string, target any) bool {
	if fc.absent() {
		return false
	}

	raw, found, err := fc.cache.Get(context, key)
	if err != nil {
		fc.logger.Warn("session_cache_get_failed",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return false
	}

	if !found {
		fc.logger.Debug("session_cache_miss",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
		)
		return false
	}

	if err := json.Unmarshal(raw, target); err != nil {
		fc.logger.Warn("session_cache_decode_failed",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return false
	}

	fc.logger.Debug("session_cache_hit",
		slog.String("family", string(fc.family)),
		slog.String("key", key),
	)
	return true
}

// evict removes a single key. Returns true if an entry was removed.
func (fc *familyCache) evict(context context.Context, key string) bool {
	if fc.absent() {
		return false
	}

	removed, err := fc.cache.Delete(context, key)
	if err != nil {
		fc.logger.Warn("session_cache_evict_failed",
			slog.String("family", string(fc.family)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return false
	}
	return removed > 0
}

// multiGet fetches several keys in one round trip. Misses are omitted.
func (fc *familyCache) multiGet(context context.Context, keys []string) map[string][]byte {
	if fc.absent() || len(keys) == 0 {
		return map[string][]byte{}
	}

	entries, err := fc.cache.MGet(context, keys...)
	if err != nil {
		fc.logger.Warn("session_cache_multi_get_failed",
			slog.String("family", string(fc.family)),
			slog.Int("keys", len(keys)),
			slog.Any("error", err),
		)
		return map[string][]byte{}
	}
	return entries
}

// multiEvict removes several keys in one round trip. Returns the removed count.
func (fc *familyCache) multiEvict(context context.Context, keys []string) int64 {
	if fc.absent() || len(keys) == 0 {
		return 0
	}

	removed, err := fc.cache.Delete(context, keys...)
	if err != nil {
		fc.logger.Warn("session_cache_multi_evict_failed",
			slog.String("family", string(fc.family)),
			slog.Int("keys", len(keys)),
			slog.Any("error", err),
		)
		return 0
	}
	return removed
}

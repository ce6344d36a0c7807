package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/logging"
)

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyEvents is for filtered event lists
	CacheKeyEvents CacheKeyType = "events"
	// CacheKeyEvent is for a single event
	CacheKeyEvent CacheKeyType = "event"
	// CacheKeyExternal is for events fetched from the external events API
	CacheKeyExternal CacheKeyType = "external"
	// CacheKeyMetadata is for NFT token metadata
	CacheKeyMetadata CacheKeyType = "nftmeta"
	// CacheKeyNonce is for sign-in nonces
	CacheKeyNonce CacheKeyType = "nonce"
)

// CacheService provides JSON caching on top of Redis. A nil RedisCache turns
// every operation into a miss so the service runs without Redis.
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// Enabled reports whether a Redis backend is attached
func (c *CacheService) Enabled() bool {
	return c != nil && c.redis != nil
}

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(param))
	}
	return strings.Join(parts, ":")
}

// EventListKey is the key for a filtered event list
func EventListKey(filterKey string) string {
	return GenerateCacheKey(CacheKeyEvents, filterKey)
}

// EventKey is the key for one event
func EventKey(id string) string {
	return GenerateCacheKey(CacheKeyEvent, id)
}

// MetadataKey is the key for token metadata on a chain
func MetadataKey(chainID int64, tokenID string) string {
	return GenerateCacheKey(CacheKeyMetadata, fmt.Sprintf("%d", chainID), tokenID)
}

// Set stores a value in cache with the configured TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !c.Enabled() {
		return nil
	}
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in cache with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl)
}

// Get retrieves a value from cache and deserializes it. A miss returns (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidatePattern removes all keys matching a pattern such as "events:*"
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	keys, err := c.redis.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to find keys matching pattern: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...)
}

// InvalidateEvent drops the cached event and every cached list, since any list
// may contain it.
func (c *CacheService) InvalidateEvent(ctx context.Context, id string) {
	if !c.Enabled() {
		return
	}
	if err := c.Invalidate(ctx, EventKey(id)); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate event cache")
	}
	if err := c.InvalidatePattern(ctx, string(CacheKeyEvents)+":*"); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate event list cache")
	}
}

// GetTTL returns the configured TTL for this cache service
func (c *CacheService) GetTTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// ErrNonceNotFound is returned when a nonce was never issued, expired or was already used
var ErrNonceNotFound = errors.New("nonce not found")

// NonceStore keeps issued nonces until they are consumed or expire
type NonceStore interface {
	Save(ctx context.Context, nonce, address string, ttl time.Duration) error
	// Consume returns the address the nonce was issued to and deletes it
	Consume(ctx context.Context, nonce string) (string, error)
}

// GenerateNonce returns 16 random bytes, hex encoded
func GenerateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

type nonceEntry struct {
	address   string
	expiresAt time.Time
}

// MemoryNonceStore is a process-local NonceStore
type MemoryNonceStore struct {
	mu      sync.Mutex
	entries map[string]nonceEntry
	now     func() time.Time
}

// NewMemoryNonceStore creates an empty store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{entries: make(map[string]nonceEntry), now: time.Now}
}

// Save records a nonce
func (s *MemoryNonceStore) Save(ctx context.Context, nonce, address string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[nonce] = nonceEntry{address: types.NormalizeAddress(address), expiresAt: now.Add(ttl)}
	return nil
}

// Consume removes and returns a live nonce
func (s *MemoryNonceStore) Consume(ctx context.Context, nonce string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[nonce]
	if !ok {
		return "", ErrNonceNotFound
	}
	delete(s.entries, nonce)
	if s.now().After(e.expiresAt) {
		return "", ErrNonceNotFound
	}
	return e.address, nil
}

// RedisNonceStore shares nonces across server instances
type RedisNonceStore struct {
	redis *storage.RedisCache
}

// NewRedisNonceStore creates a Redis-backed store
func NewRedisNonceStore(redis *storage.RedisCache) *RedisNonceStore {
	return &RedisNonceStore{redis: redis}
}

func nonceKey(nonce string) string {
	return storage.GenerateCacheKey(storage.CacheKeyNonce, nonce)
}

// Save records a nonce with a TTL
func (s *RedisNonceStore) Save(ctx context.Context, nonce, address string, ttl time.Duration) error {
	ok, err := s.redis.SetNX(ctx, nonceKey(nonce), types.NormalizeAddress(address), ttl)
	if err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce collision")
	}
	return nil
}

// Consume atomically reads and deletes a nonce
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (string, error) {
	address, err := s.redis.GetDel(ctx, nonceKey(nonce))
	if err != nil {
		if errors.Is(err, storage.ErrCacheMiss) {
			return "", ErrNonceNotFound
		}
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return address, nil
}

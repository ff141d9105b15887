/**
 * @description
 * Short-lived verification code storage for the account linking flow. Codes are
 * one-time use and expire after a configurable TTL, so the store is an explicit
 * expiring key-value abstraction with a Redis implementation for deployment and
 * an in-memory implementation for tests and degraded startup.
 */

package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCodeNotFound is returned when no live code exists for a key.
var ErrCodeNotFound = errors.New("verification code not found")

// CodeStore stores verification codes with a TTL.
type CodeStore interface {
	Set(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RedisCodeStore implements CodeStore on Redis so codes survive restarts and
// are shared across instances.
type RedisCodeStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCodeStore creates a Redis-backed code store under the given key prefix.
func NewRedisCodeStore(client redis.UniversalClient, prefix string) *RedisCodeStore {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "wallet:verify_code"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")
	return &RedisCodeStore{client: client, prefix: trimmed}
}

func (s *RedisCodeStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisCodeStore) Set(ctx context.Context, key, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), code, ttl).Err()
}

func (s *RedisCodeStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", err
	}
	return val, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

type memoryCodeEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore is a process-local CodeStore. Used in tests and as a fallback
// when Redis is not configured.
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]memoryCodeEntry
}

// NewMemoryCodeStore creates an empty in-memory code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{entries: make(map[string]memoryCodeEntry)}
}

func (s *MemoryCodeStore) Set(ctx context.Context, key, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryCodeEntry{code: code, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", ErrCodeNotFound
	}
	return entry.code, nil
}

func (s *MemoryCodeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Package redisstate provides a Redis-backed dispatch liveness store.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitgauge/gitgauge/internal/core"
)

const defaultKey = "dispatch:last_processed_at"

// StateStore records the dispatcher's last-processed timestamp in Redis so
// the trigger surface can report liveness across restarts and replicas.
type StateStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ core.DispatchStateStore = (*StateStore)(nil)

// NewStateStore creates a Redis-backed dispatch state store.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return &StateStore{
		client: client,
		key:    defaultKey,
		ttl:    24 * time.Hour,
	}
}

// NewStateStoreWithKey creates a state store using a custom key.
func NewStateStoreWithKey(client redis.UniversalClient, key string) *StateStore {
	s := NewStateStore(client)
	s.key = key
	return s
}

// MarkProcessed records the given time as the last completed dispatch cycle.
func (s *StateStore) MarkProcessed(ctx context.Context, at time.Time) error {
	if err := s.client.Set(ctx, s.key, at.UTC().Format(time.RFC3339Nano), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// LastProcessed returns the recorded last cycle time. A missing key returns
// the zero time with no error.
func (s *StateStore) LastProcessed(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", s.key, err)
	}
	return at, nil
}

// MemoryStateStore keeps the liveness snapshot in process memory. It is used
// when Redis is not configured.
type MemoryStateStore struct {
	mu   sync.RWMutex
	last time.Time
}

var _ core.DispatchStateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an in-memory dispatch state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// MarkProcessed records the given time as the last completed dispatch cycle.
func (s *MemoryStateStore) MarkProcessed(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = at.UTC()
	return nil
}

// LastProcessed returns the recorded last cycle time, zero if none yet.
func (s *MemoryStateStore) LastProcessed(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, nil
}

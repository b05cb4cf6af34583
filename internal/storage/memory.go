package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dpr-plan-engine/internal/domain"
)

// MemoryStore is an in-process store bounded by entry count, with an optional TTL.
// A zero TTL keeps entries until they are evicted by size.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a store holding at most maxItems keys.
func NewMemoryStore(maxItems int, ttl time.Duration) *MemoryStore {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryStore{cache: expirable.NewLRU[string, []byte](maxItems, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	val, ok := s.cache.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value json.RawMessage) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Add(key, stored)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}

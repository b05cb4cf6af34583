// Package storage provides the key-value stores that stand in for browser storage:
// a persistent store (applicant form data) and a session-scoped store (quotes,
// transient toggles). Each key holds a single JSON object.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// GetJSON reads key into dst. A miss returns domain.ErrNotFound.
func GetJSON(ctx context.Context, store domain.KeyValueStore, key string, dst interface{}) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, store domain.KeyValueStore, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return store.Set(ctx, key, raw)
}

// ScopedStore prefixes every key so many sessions can share one backend.
type ScopedStore struct {
	inner  domain.KeyValueStore
	prefix string
}

// Scoped returns a view of inner restricted to the given scope.
func Scoped(inner domain.KeyValueStore, scope string) *ScopedStore {
	return &ScopedStore{inner: inner, prefix: scope + ":"}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *ScopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close is a no-op; the shared backend is closed by its owner.
func (s *ScopedStore) Close() error {
	return nil
}

// SafeStore turns every backend failure into "empty": reads that fail or return
// malformed JSON look like misses, and failed writes are logged and dropped.
type SafeStore struct {
	inner  domain.KeyValueStore
	name   string
	logger *logrus.Logger
}

// NewSafeStore wraps inner. A nil inner behaves as an always-empty store.
func NewSafeStore(name string, inner domain.KeyValueStore, logger *logrus.Logger) *SafeStore {
	return &SafeStore{inner: inner, name: name, logger: logger}
}

func (s *SafeStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if s.inner == nil {
		return nil, domain.ErrNotFound
	}
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"store": s.name,
				"key":   key,
			}).Warn("Storage read failed, treating as empty")
		}
		return nil, domain.ErrNotFound
	}
	if !json.Valid(raw) {
		s.logger.WithFields(logrus.Fields{
			"store": s.name,
			"key":   key,
		}).Warn("Stored value is not valid JSON, treating as empty")
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (s *SafeStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if s.inner == nil {
		return nil
	}
	if err := s.inner.Set(ctx, key, value); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"store": s.name,
			"key":   key,
		}).Warn("Storage write failed, value dropped")
	}
	return nil
}

func (s *SafeStore) Delete(ctx context.Context, key string) error {
	if s.inner == nil {
		return nil
	}
	if err := s.inner.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).WithField("store", s.name).Warn("Storage delete failed")
	}
	return nil
}

func (s *SafeStore) Close() error {
	if s.inner == nil {
		return nil
	}
	return s.inner.Close()
}

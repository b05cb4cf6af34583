package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// Stores is the pair of backends the widget reads and writes.
type Stores struct {
	Persistent domain.KeyValueStore
	Session    domain.KeyValueStore
}

// Open builds both stores from configuration, each wrapped in a SafeStore.
// databaseURL is only used by the postgres backend.
func Open(config *domain.Config, databaseURL string, logger *logrus.Logger) (*Stores, error) {
	var persistent domain.KeyValueStore
	switch config.Storage.Persistent {
	case "sqlite":
		s, err := NewSQLiteStore(config.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		persistent = s
	case "postgres":
		s, err := NewPostgresStoreFromURL(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		persistent = s
	default:
		persistent = NewMemoryStore(config.Storage.MemoryMaxItems, 0)
	}

	var session domain.KeyValueStore
	switch config.Storage.Session {
	case "redis":
		s, err := NewRedisStore(config.Cache, config.Storage.SessionTTL)
		if err != nil {
			persistent.Close()
			return nil, fmt.Errorf("opening redis session store: %w", err)
		}
		session = s
	default:
		session = NewMemoryStore(config.Storage.MemoryMaxItems, config.Storage.SessionTTL)
	}

	logger.WithFields(logrus.Fields{
		"persistent": config.Storage.Persistent,
		"session":    config.Storage.Session,
	}).Info("Key-value stores opened")

	return &Stores{
		Persistent: NewSafeStore("persistent", persistent, logger),
		Session:    NewSafeStore("session", session, logger),
	}, nil
}

// Close closes both stores.
func (s *Stores) Close() error {
	perr := s.Persistent.Close()
	serr := s.Session.Close()
	if perr != nil {
		return perr
	}
	return serr
}

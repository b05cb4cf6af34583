package api

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/render"
	"github.com/dpr-plan-engine/internal/service"
	"github.com/dpr-plan-engine/internal/storage"
)

//go:embed templates/results.html
var defaultResultsPage []byte

const defaultMaxSessions = 10000

// Session is one attached widget: a results page and the engine driving it.
// ClientID identifies the visitor across page loads; form data is stored per
// client, everything else per session.
type Session struct {
	ID        string
	ClientID  string
	Document  *render.Document
	Engine    *service.Engine
	Hub       *Hub
	CreatedAt time.Time
}

// SessionRegistry creates and looks up widget sessions. Idle sessions expire.
type SessionRegistry struct {
	sessions *expirable.LRU[string, *Session]
	stores   *storage.Stores
	page     []byte
	options  domain.WidgetOptions
	logger   *logrus.Logger
}

// RegistryConfig configures a SessionRegistry.
type RegistryConfig struct {
	Stores      *storage.Stores
	Options     domain.WidgetOptions
	PagePath    string
	TTL         time.Duration
	MaxSessions int
	Logger      *logrus.Logger
}

// NewSessionRegistry loads the results page template and creates an empty registry.
// An empty PagePath uses the built-in page.
func NewSessionRegistry(cfg RegistryConfig) (*SessionRegistry, error) {
	page := defaultResultsPage
	if cfg.PagePath != "" {
		raw, err := os.ReadFile(cfg.PagePath)
		if err != nil {
			return nil, fmt.Errorf("reading results page: %w", err)
		}
		page = raw
	}
	// Fail at startup rather than on the first session.
	if _, err := render.ParseDocument(bytes.NewReader(page)); err != nil {
		return nil, err
	}

	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	stores := cfg.Stores
	if stores == nil {
		stores = &storage.Stores{
			Persistent: storage.NewMemoryStore(0, 0),
			Session:    storage.NewMemoryStore(0, cfg.TTL),
		}
	}

	r := &SessionRegistry{
		stores:  stores,
		page:    page,
		options: cfg.Options,
		logger:  cfg.Logger,
	}
	r.sessions = expirable.NewLRU[string, *Session](maxSessions, r.evicted, cfg.TTL)
	return r, nil
}

// Create attaches a new widget session for a visitor and renders it for the
// first time, restoring the visitor's stored form data. An empty clientID
// starts a new visitor.
func (r *SessionRegistry) Create(ctx context.Context, clientID string) (*Session, error) {
	doc, err := render.ParseDocument(bytes.NewReader(r.page))
	if err != nil {
		return nil, err
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}

	sess := &Session{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		Document:  doc,
		Hub:       NewHub(),
		CreatedAt: time.Now().UTC(),
	}
	sess.Engine = service.NewEngine(service.EngineConfig{
		Persistent: storage.Scoped(r.stores.Persistent, clientScope(clientID)),
		Session:    storage.Scoped(r.stores.Session, sess.ID),
		View:       doc,
		Form:       doc,
		Options:    r.options,
		Logger:     r.logger,
		OnRender:   sess.Hub.Publish,
	})
	sess.Engine.Refresh(ctx)

	r.sessions.Add(sess.ID, sess)
	r.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"client_id":  clientID,
	}).Info("Widget session created")
	return sess, nil
}

func clientScope(clientID string) string {
	return "client:" + clientID
}

// Get returns a live session and extends its expiry.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	sess, ok := r.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	r.sessions.Add(id, sess)
	return sess, nil
}

// Remove detaches a session.
func (r *SessionRegistry) Remove(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}

// Close detaches every session.
func (r *SessionRegistry) Close() {
	r.sessions.Purge()
}

func (r *SessionRegistry) evicted(id string, sess *Session) {
	sess.Hub.Close()
	r.logger.WithField("session_id", id).Debug("Widget session closed")
}

// DefaultResultsPage returns the built-in results page template.
func DefaultResultsPage() []byte {
	return append([]byte(nil), defaultResultsPage...)
}

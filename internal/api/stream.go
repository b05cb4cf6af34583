package api

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/middleware"
	"github.com/dpr-plan-engine/internal/service"
)

const (
	streamBuffer    = 16
	streamPing      = 30 * time.Second
	streamWriteWait = 10 * time.Second
)

// Hub fans a session's render snapshots out to its stream subscribers.
// Slow subscribers drop snapshots rather than block the engine.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan service.Snapshot]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan service.Snapshot]struct{})}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it.
func (h *Hub) Subscribe() (<-chan service.Snapshot, func()) {
	ch := make(chan service.Snapshot, streamBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Publish delivers a snapshot to every subscriber without blocking.
func (h *Hub) Publish(snap service.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan service.Snapshot]struct{})
	h.closed = true
}

// newUpgrader accepts same-origin requests, requests without an Origin header
// and the configured widget origins.
func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			return middleware.AllowOrigin(allowed, origin)
		},
	}
}

// handleStream upgrades to a websocket, sends the current snapshot and then
// every snapshot rendered for the session.
func (s *Server) handleStream(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sess.ID).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := sess.Hub.Subscribe()
	defer cancel()

	log := s.logger.WithField("session_id", sess.ID)
	log.Debug("Stream subscriber connected")

	// The read loop only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, sess.Engine.Snapshot()); err != nil {
		log.WithError(err).Debug("Stream write failed")
		return
	}

	ticker := time.NewTicker(streamPing)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			log.Debug("Stream subscriber disconnected")
			return
		case snap, open := <-updates:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				log.WithError(err).Debug("Stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				log.WithFields(logrus.Fields{"error": err}).Debug("Stream ping failed")
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap service.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}

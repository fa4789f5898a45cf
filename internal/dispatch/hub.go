package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/bikerides/internal/geocode"
	"github.com/example/bikerides/internal/models"
	"github.com/example/bikerides/internal/observability"
)

const writeWait = 5 * time.Second

// Message types exchanged over the socket.
const (
	TypeDirectoryChanged = "directory_changed"
	TypeSearch           = "search"
	TypeSearchResults    = "search_results"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type   string          `json:"type"`
	Event  *models.Event   `json:"event,omitempty"`
	Query  string          `json:"query,omitempty"`
	Result *geocode.Result `json:"result,omitempty"`
}

// session is one connected client. Each has its own search debouncer so
// typing in one tab never supersedes another tab's lookup.
type session struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	search *geocode.Debouncer
}

func (s *session) send(v Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Hub fans directory changes out to every connected client and serves
// per-client place search.
type Hub struct {
	geocoder geocode.Geocoder
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewHub(g geocode.Geocoder, debounce time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = geocode.DefaultDebounce
	}
	return &Hub{geocoder: g, debounce: debounce, logger: logger, sessions: make(map[string]*session)}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish implements directory.Sink.
func (h *Hub) Publish(_ context.Context, ev models.Event) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	frame := Envelope{Type: TypeDirectoryChanged, Event: &ev}
	for _, s := range targets {
		if err := s.send(frame); err != nil {
			h.logger.Warn("ws send failed", "session", s.id, "error", err)
			observability.EventsPublished.WithLabelValues("ws", "error").Inc()
			continue
		}
		observability.EventsPublished.WithLabelValues("ws", "ok").Inc()
	}
}

// Serve registers conn and reads search frames until the client goes
// away. It closes conn before returning.
func (h *Hub) Serve(conn *websocket.Conn) {
	s := &session{id: uuid.NewString(), conn: conn}
	if h.geocoder != nil {
		s.search = geocode.NewDebouncer(h.geocoder, func(r geocode.Result) {
			if err := s.send(Envelope{Type: TypeSearchResults, Query: r.Query, Result: &r}); err != nil {
				h.logger.Debug("ws search reply failed", "session", s.id, "error", err)
			}
		}, geocode.WithInterval(h.debounce), geocode.WithLogger(h.logger))
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	observability.WSClients.Inc()
	h.logger.Debug("ws client connected", "session", s.id)

	defer func() {
		h.mu.Lock()
		delete(h.sessions, s.id)
		h.mu.Unlock()
		observability.WSClients.Dec()
		if s.search != nil {
			s.search.Stop()
		}
		_ = conn.Close()
		h.logger.Debug("ws client disconnected", "session", s.id)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in Envelope
		if err := json.Unmarshal(raw, &in); err != nil {
			h.logger.Debug("ws bad frame", "session", s.id, "error", err)
			continue
		}
		if in.Type == TypeSearch && s.search != nil {
			s.search.Input(in.Query)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		s.mu.Unlock()
		_ = s.conn.Close()
	}
}

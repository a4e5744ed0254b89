// Package realtime fans out session and message events to connected
// viewers over websockets. The channel is fire-and-forget: delivery is
// never acknowledged and never blocks the publisher.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection

	// Login state replayed to late-joining viewers, mirroring what the
	// session currently shows.
	lastQR string
	ready  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Viewers are served from the same deployment; the HTTP
			// surface carries no auth of its own.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*connection),
	}
}

// ServeHTTP upgrades the request and attaches the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := newConnection(ws)

	h.mu.Lock()
	h.conns[conn.id] = conn
	lastQR, ready := h.lastQR, h.ready
	h.mu.Unlock()

	go conn.writeLoop()

	// Replay current session state so a late viewer is not stuck waiting
	// for the next transition.
	if lastQR != "" {
		h.sendTo(conn, envelope{Event: "qr", Payload: lastQR})
	} else if ready {
		h.sendTo(conn, envelope{Event: "ready"})
	}

	h.logger.Info("viewer connected", "conn_id", conn.id)

	// Read loop exists only to notice the close.
	go func() {
		defer h.detach(conn)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish broadcasts an event to every connected viewer. Failures drop the
// offending connection and are otherwise ignored.
func (h *Hub) Publish(event string, payload any) {
	b, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	switch event {
	case "qr":
		if qr, ok := payload.(string); ok {
			h.lastQR = qr
		}
		h.ready = false
	case "ready":
		h.lastQR = ""
		h.ready = true
	case "disconnected", "authFailure":
		h.ready = false
	}
	targets := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(b) {
			h.detach(c)
		}
	}
}

func (h *Hub) sendTo(conn *connection, env envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	if !conn.enqueue(b) {
		h.detach(conn)
	}
}

func (h *Hub) detach(conn *connection) {
	h.mu.Lock()
	_, present := h.conns[conn.id]
	delete(h.conns, conn.id)
	h.mu.Unlock()

	conn.close()
	if present {
		h.logger.Info("viewer disconnected", "conn_id", conn.id)
	}
}

// ViewerCount reports the number of attached viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Package session owns the single live messaging session and serializes
// its lifecycle transitions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type State string

const (
	StateAbsent       State = "absent"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateDestroying   State = "destroying"
)

// Transport is the messaging-session lifecycle surface. Implementations
// bridge to the actual driver; all calls may block on I/O.
type Transport interface {
	Initialize(ctx context.Context) error
	Logout(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Factory creates a fresh transport handle for a new session.
type Factory func() (Transport, error)

// Broadcaster is the fire-and-forget viewer notification channel.
type Broadcaster interface {
	Publish(event string, payload any)
}

// Manager holds at most one live transport. All create/destroy/recreate
// transitions run under one mutex, so a recreate racing a destroy still
// converges to exactly one session — never zero, never two.
type Manager struct {
	factory Factory
	hub     Broadcaster
	logger  *slog.Logger

	// lifecycleMu serializes transitions and is held across blocking
	// transport calls. state has its own lock so event callbacks arriving
	// mid-transition never deadlock.
	lifecycleMu sync.Mutex
	transport   Transport

	stateMu sync.Mutex
	state   State
}

func NewManager(factory Factory, hub Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		factory: factory,
		hub:     hub,
		logger:  logger,
		state:   StateAbsent,
	}
}

func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// Start creates and initializes the first session.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.transport != nil {
		return fmt.Errorf("session already started")
	}
	return m.createLocked(ctx)
}

// Recreate tears down the current session and starts a fresh one. Teardown
// errors are advisory: recovery is always attempted, and the returned error
// reports the first problem encountered even when a new session is live.
func (m *Manager) Recreate(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	var firstErr error

	if m.transport != nil {
		m.setState(StateDestroying)

		// Logout is harmless on a session that never reached ready; the
		// driver treats it as a no-op.
		if err := m.transport.Logout(ctx); err != nil {
			m.logger.Warn("logout failed", "error", err)
			firstErr = fmt.Errorf("logout: %w", err)
		}
		if err := m.transport.Destroy(ctx); err != nil {
			m.logger.Warn("destroy failed", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("destroy: %w", err)
			}
		}
		m.transport = nil
		m.setState(StateAbsent)
	}

	if err := m.createLocked(ctx); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	m.logger.Info("session recreated")
	return firstErr
}

// createLocked requires lifecycleMu to be held.
func (m *Manager) createLocked(ctx context.Context) error {
	t, err := m.factory()
	if err != nil {
		m.setState(StateAbsent)
		return fmt.Errorf("create session: %w", err)
	}

	m.transport = t
	m.setState(StateInitializing)

	if err := m.transport.Initialize(ctx); err != nil {
		// Keep the handle: initialization failures surface via auth_failure
		// events and the session is rebuilt through an explicit logout.
		m.logger.Error("session initialize failed", "error", err)
		return fmt.Errorf("initialize session: %w", err)
	}

	m.logger.Info("session initializing")
	return nil
}

// HandleSessionEvent maps transport lifecycle events onto viewer broadcast
// events and session state. A disconnect is surfaced but never triggers an
// automatic reconnect; rebuilding happens only via explicit logout.
func (m *Manager) HandleSessionEvent(event, payload string) {
	switch event {
	case "qr":
		m.hub.Publish("qr", payload)
	case "ready":
		m.setState(StateReady)
		m.hub.Publish("ready", nil)
		m.logger.Info("session ready")
	case "authenticated":
		m.hub.Publish("authenticated", nil)
	case "auth_failure":
		m.hub.Publish("authFailure", payload)
		m.logger.Error("session authentication failed", "detail", payload)
	case "disconnected":
		m.hub.Publish("disconnected", payload)
		m.logger.Warn("session disconnected", "reason", payload)
	default:
		m.logger.Debug("ignoring unknown session event", "event", event)
	}
}

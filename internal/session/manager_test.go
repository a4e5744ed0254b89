package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTransport struct {
	live       *atomic.Int32
	logoutErr  error
	destroyErr error
	initErr    error
	destroyed  atomic.Bool
}

func (f *fakeTransport) Initialize(context.Context) error { return f.initErr }
func (f *fakeTransport) Logout(context.Context) error     { return f.logoutErr }
func (f *fakeTransport) Destroy(context.Context) error {
	if f.destroyed.CompareAndSwap(false, true) && f.live != nil {
		f.live.Add(-1)
	}
	return f.destroyErr
}

type fakeHub struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeHub) Publish(event string, _ any) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakeHub) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// trackingFactory counts live sessions: +1 per create, -1 per destroy.
func trackingFactory(live *atomic.Int32) Factory {
	return func() (Transport, error) {
		live.Add(1)
		return &fakeTransport{live: live}, nil
	}
}

func TestStart_CreatesOneSession(t *testing.T) {
	var live atomic.Int32
	m := NewManager(trackingFactory(&live), &fakeHub{}, discardLogger())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if live.Load() != 1 {
		t.Errorf("expected 1 live session, got %d", live.Load())
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected second Start to fail")
	}
	if m.State() != StateInitializing {
		t.Errorf("expected initializing state, got %s", m.State())
	}
}

func TestRecreate_ConvergesToOneSession(t *testing.T) {
	var live atomic.Int32
	m := NewManager(trackingFactory(&live), &fakeHub{}, discardLogger())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Rapid sequential and concurrent recreate cycles must never leave
	// zero or two live sessions.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Recreate(context.Background()); err != nil {
				t.Errorf("Recreate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if live.Load() != 1 {
		t.Errorf("expected exactly 1 live session after recreate storm, got %d", live.Load())
	}
}

func TestRecreate_TeardownErrorIsAdvisory(t *testing.T) {
	var live atomic.Int32
	calls := 0
	factory := func() (Transport, error) {
		calls++
		live.Add(1)
		if calls == 1 {
			return &fakeTransport{live: &live, logoutErr: errors.New("not connected")}, nil
		}
		return &fakeTransport{live: &live}, nil
	}

	m := NewManager(factory, &fakeHub{}, discardLogger())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := m.Recreate(context.Background())
	if err == nil {
		t.Fatal("expected advisory error from failed logout")
	}
	// Recovery still happened: a fresh session is live.
	if live.Load() != 1 {
		t.Errorf("expected 1 live session despite logout failure, got %d", live.Load())
	}
	if calls != 2 {
		t.Errorf("expected a second session to be created, got %d creates", calls)
	}
}

func TestRecreate_WorksFromAbsent(t *testing.T) {
	var live atomic.Int32
	m := NewManager(trackingFactory(&live), &fakeHub{}, discardLogger())

	// No Start first: recreate on an absent session just creates one.
	if err := m.Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}
	if live.Load() != 1 {
		t.Errorf("expected 1 live session, got %d", live.Load())
	}
}

func TestHandleSessionEvent_MapsToBroadcast(t *testing.T) {
	hub := &fakeHub{}
	m := NewManager(trackingFactory(&atomic.Int32{}), hub, discardLogger())

	m.HandleSessionEvent("qr", "qr-data")
	m.HandleSessionEvent("authenticated", "")
	m.HandleSessionEvent("ready", "")
	m.HandleSessionEvent("auth_failure", "bad creds")
	m.HandleSessionEvent("disconnected", "logged out elsewhere")
	m.HandleSessionEvent("something_else", "")

	want := []string{"qr", "authenticated", "ready", "authFailure", "disconnected"}
	got := hub.got()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if m.State() != StateReady {
		t.Errorf("expected ready state after ready event, got %s", m.State())
	}
}

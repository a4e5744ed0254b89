// Package scheduler drives periodic lead extraction over recently-active
// conversations.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fertilitypoint/leadrelay/internal/chat"
	"github.com/fertilitypoint/leadrelay/internal/leads"
)

// ConversationSource is the read-only slice of the store a cycle needs.
type ConversationSource interface {
	ListActiveSince(ctx context.Context, threshold time.Time) ([]chat.Conversation, error)
}

// LeadExtractor derives a lead from a message log, or nil.
type LeadExtractor interface {
	Extract(ctx context.Context, messages []chat.Message, fallbackNumber string) *leads.Lead
}

// LeadSink receives qualified leads. May be nil if no sink is configured.
type LeadSink interface {
	Forward(ctx context.Context, lead leads.Lead) error
}

// Scheduler runs an extraction cycle on a fixed interval and on demand.
// The selection window is slightly wider than the interval so a
// conversation updated just before a cycle boundary is never missed;
// duplicate forwards across overlapping cycles are tolerated (and loosely
// suppressed by the guard when one is configured).
type Scheduler struct {
	store     ConversationSource
	extractor LeadExtractor
	sink      LeadSink
	guard     leads.ForwardGuard // optional
	interval  time.Duration
	window    time.Duration
	logger    *slog.Logger

	// cycleMu keeps the timer and the on-demand trigger from interleaving
	// two cycles.
	cycleMu sync.Mutex

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(store ConversationSource, extractor LeadExtractor, sink LeadSink, guard leads.ForwardGuard, interval, window time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if window < interval {
		return nil, errors.New("window must cover the interval")
	}
	return &Scheduler{
		store:     store,
		extractor: extractor,
		sink:      sink,
		guard:     guard,
		interval:  interval,
		window:    window,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("lead scheduler started", "interval", s.interval.String(), "window", s.window.String())

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("lead scheduler stopping")
				return
			case <-ticker.C:
				s.safeCycle(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("lead scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("extraction cycle panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	if err := s.RunCycle(ctx); err != nil {
		s.logger.Error("extraction cycle failed", "error", err)
		return
	}
	s.logger.Info("extraction cycle completed", "duration_ms", time.Since(start).Milliseconds())
}

// RunCycle selects conversations active within the window and extracts and
// forwards leads sequentially. Per-conversation failures are logged and
// skipped; the only cycle-level error is a failed selection read. A cycle
// runs to completion over its selected set — no mid-flight cancellation.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	threshold := time.Now().Add(-s.window)
	convs, err := s.store.ListActiveSince(ctx, threshold)
	if err != nil {
		return fmt.Errorf("select active conversations: %w", err)
	}

	s.logger.Info("extraction cycle running", "active_conversations", len(convs))

	for _, conv := range convs {
		lead := s.extractor.Extract(ctx, conv.Messages, conv.ContactNumber)
		if lead == nil {
			s.logger.Debug("no lead extracted", "chat_id", conv.ChatID)
			continue
		}
		if s.sink == nil {
			s.logger.Warn("lead sink not configured, dropping lead", "chat_id", conv.ChatID)
			continue
		}
		if s.guard != nil && s.guard.AlreadyForwarded(ctx, conv.ChatID) {
			s.logger.Debug("lead already forwarded this window", "chat_id", conv.ChatID)
			continue
		}
		if err := s.sink.Forward(ctx, *lead); err != nil {
			// Next cycle's overlap window gives an implicit retry for
			// conversations still active.
			s.logger.Error("lead forward failed", "chat_id", conv.ChatID, "error", err)
			continue
		}
		if s.guard != nil {
			s.guard.MarkForwarded(ctx, conv.ChatID)
		}
		s.logger.Info("lead forwarded", "chat_id", conv.ChatID, "chat_name", conv.ChatName)
	}

	return nil
}

// Package remind periodically sweeps the store for soon-due accepted tasks
// and delivers each task's single reminder.
package remind

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/store"
)

// Scanner runs the reminder sweep on a fixed interval. Reminders are
// at-most-once: the reminder-sent flag is set whether or not delivery
// succeeded, so a task is never reminded twice across scan cycles.
type Scanner struct {
	store    store.Store
	disp     *notify.Dispatcher
	interval time.Duration
	window   time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// New creates a scanner sweeping every interval for tasks due within the
// half-open window (now, now+window].
func New(
	st store.Store,
	disp *notify.Dispatcher,
	interval, window time.Duration,
	log *zap.Logger,
) *Scanner {
	return &Scanner{
		store:    st,
		disp:     disp,
		interval: interval,
		window:   window,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. Calling Start on a
// running scanner is a no-op.
func (s *Scanner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
}

// Stop halts the sweep loop. An in-flight sweep runs to completion.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

func (s *Scanner) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(context.Background(), time.Now())
		}
	}
}

// Sweep performs a single reminder pass at the given moment. One task's
// delivery failure never blocks the remaining candidates.
func (s *Scanner) Sweep(ctx context.Context, now time.Time) {
	candidates, err := s.store.ListReminderCandidates(ctx, now, s.window)
	if err != nil {
		s.log.Warn("reminder sweep query failed", zap.Error(err))
		return
	}

	delivered := 0
	for _, t := range candidates {
		if err := s.remind(ctx, &t); err != nil {
			s.log.Error("reminder delivery failed",
				zap.Int64("task_id", t.ID), zap.Error(err))
			continue
		}
		delivered++
	}

	if len(candidates) > 0 {
		s.log.Info("reminder sweep finished",
			zap.Int("candidates", len(candidates)),
			zap.Int("delivered", delivered))
	}
}

// remind delivers a task's reminder and sets the one-shot flag regardless
// of the delivery outcome.
func (s *Scanner) remind(ctx context.Context, t *model.Task) error {
	deliverErr := s.disp.DeliverReminder(ctx, t)

	// Marked even on failure: reminders are never retried.
	if err := s.store.MarkReminderSent(ctx, t.ID); err != nil {
		s.log.Error("marking reminder sent failed",
			zap.Int64("task_id", t.ID), zap.Error(err))
	}
	return deliverErr
}

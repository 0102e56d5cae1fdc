package jobengine

import (
	"context"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// DefaultPollInterval is the bulk refresh cadence.
const DefaultPollInterval = 5 * time.Second

// Scheduler drives the bulk refresh: every tick it triggers a full
// fetch-and-reconcile cycle, but only while the store holds at least one
// active job. Failed refreshes are logged and swallowed; the ticker keeps
// its fixed cadence with no backoff (single-job retry policy lives in the
// per-job monitor instead).
//
// Start and Stop are idempotent.
type Scheduler struct {
	interval time.Duration
	refresh  func(context.Context)
	hasWork  func() bool
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires a scheduler to a refresh callback and an active-set
// probe. interval <= 0 falls back to DefaultPollInterval.
func NewScheduler(interval time.Duration, refresh func(context.Context), hasWork func() bool, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		refresh:  refresh,
		hasWork:  hasWork,
		log:      log,
	}
}

// Start begins ticking. A no-op when already polling.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.log.Debug("poll scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the ticker and waits for the loop to exit. Safe to call
// when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debug("poll scheduler stopped")
}

// Running reports whether the scheduler is currently polling.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := jitterbug.New(s.interval, &jitterbug.Norm{Stdev: 50 * time.Millisecond})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.hasWork() {
				// No active jobs: skip the network round trip entirely.
				continue
			}
			s.refresh(ctx)
		}
	}
}

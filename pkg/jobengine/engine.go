package jobengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
)

// Orchestrator is the privileged in-process job-control handle, available
// when the engine runs inside the same process as the backend
// orchestrator. It mirrors the gateway's mutating operations; the REST
// gateway itself satisfies the interface, so the engine is
// transport-agnostic once constructed.
type Orchestrator interface {
	Submit(ctx context.Context, spec gateway.JobSpec) (gateway.Snapshot, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Retry(ctx context.Context, id string) (bool, error)
}

// Notifier receives exactly one user-facing notification per terminal
// transition. Display and storage are the caller's concern.
type Notifier interface {
	NotifyTerminal(job Job)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Job)

func (f NotifierFunc) NotifyTerminal(job Job) { f(job) }

// Config assembles an Engine.
type Config struct {
	// Gateway is the remote backend. Required.
	Gateway gateway.Gateway

	// Privileged, when non-nil, is preferred over the gateway for
	// create/cancel/retry. Selected once at construction.
	Privileged Orchestrator

	// PollInterval is the bulk refresh cadence. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// RunningBackoff paces status checks for a job that is legitimately
	// still running. Zero value means DefaultRunningBackoff.
	RunningBackoff Backoff

	// TransportBackoff paces retries after gateway I/O failures. Zero
	// value means DefaultTransportBackoff.
	TransportBackoff Backoff

	// WatchDeadline is the per-watch wall-clock ceiling. Zero means
	// DefaultWatchDeadline.
	WatchDeadline time.Duration

	// Logger defaults to a nop logger.
	Logger *zap.Logger

	// Notifier defaults to logging terminal transitions.
	Notifier Notifier
}

// Engine owns the job store, the listener bus, the poll scheduler, and all
// per-job monitors. Create one per panel or process and Close it at
// teardown; Close cancels every outstanding timer and monitor.
type Engine struct {
	cfg      Config
	log      *zap.Logger
	gateway  gateway.Gateway
	dispatch Orchestrator

	store     *Store
	bus       *Bus
	scheduler *Scheduler
	monitors  *monitorSet
	notifier  Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// notified dedupes user-facing terminal notifications per job id.
	// Cleared by Retry, which starts a new monitoring cycle.
	notifiedMu sync.Mutex
	notified   map[string]bool
}

// New builds an Engine. The engine is passive until StartPolling or Watch
// is called.
func New(cfg Config) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("jobengine: gateway is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RunningBackoff == (Backoff{}) {
		cfg.RunningBackoff = DefaultRunningBackoff()
	}
	if cfg.TransportBackoff == (Backoff{}) {
		cfg.TransportBackoff = DefaultTransportBackoff()
	}
	if cfg.WatchDeadline <= 0 {
		cfg.WatchDeadline = DefaultWatchDeadline
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Engine{
		cfg:      cfg,
		log:      cfg.Logger,
		gateway:  cfg.Gateway,
		store:    NewStore(),
		monitors: newMonitorSet(),
		notified: make(map[string]bool),
	}
	e.bus = NewBus(cfg.Logger)

	// Transport selection happens exactly once, here.
	if cfg.Privileged != nil {
		e.dispatch = cfg.Privileged
	} else {
		e.dispatch = cfg.Gateway
	}

	e.notifier = cfg.Notifier
	if e.notifier == nil {
		e.notifier = NotifierFunc(func(job Job) {
			e.log.Info("job finished",
				zap.String("job_id", job.ID),
				zap.String("status", string(job.Status)))
		})
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.scheduler = NewScheduler(cfg.PollInterval, func(ctx context.Context) {
		if err := e.Refresh(ctx); err != nil {
			// The bulk scheduler never backs off; single-job retry
			// policy lives in the monitors.
			e.log.Warn("bulk refresh failed", zap.Error(err))
		}
	}, func() bool {
		return e.store.ActiveCount() > 0
	}, cfg.Logger)

	return e, nil
}

// StartPolling begins the bulk refresh loop. Idempotent.
func (e *Engine) StartPolling() { e.scheduler.Start(e.ctx) }

// StopPolling halts the bulk refresh loop. Idempotent.
func (e *Engine) StopPolling() { e.scheduler.Stop() }

// Polling reports whether the bulk scheduler is running.
func (e *Engine) Polling() bool { return e.scheduler.Running() }

// Close stops the scheduler, cancels all monitors, and waits for them.
func (e *Engine) Close() {
	e.scheduler.Stop()
	e.cancel()
	e.wg.Wait()
}

// Subscribe registers a transition listener. See Bus.Subscribe.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	return e.bus.Subscribe(fn)
}

// ActiveJobs returns the current active set.
func (e *Engine) ActiveJobs() []Job { return e.store.ListActive() }

// CompletedJobs returns the current completed set.
func (e *Engine) CompletedJobs() []Job { return e.store.ListCompleted() }

// JobByID looks up one job in either set.
func (e *Engine) JobByID(id string) (Job, bool) { return e.store.Get(id) }

// Store exposes the underlying registry for read-side collaborators.
func (e *Engine) Store() *Store { return e.store }

// Refresh runs one full fetch-reconcile-publish cycle, the same work a
// scheduler tick performs.
func (e *Engine) Refresh(ctx context.Context) error {
	snaps, err := e.gateway.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	prev, active, completed := e.store.UpsertFromSnapshot(snaps)
	diff := Reconcile(prev, active, completed)
	if diff.Empty() {
		return nil
	}

	e.log.Debug("refresh reconciled",
		zap.Int("updated", len(diff.Updated)),
		zap.Int("became_terminal", len(diff.BecameTerminal)))

	e.bus.Publish(Event{Updated: diff.Updated, BecameTerminal: diff.BecameTerminal})
	for _, job := range diff.BecameTerminal {
		e.notifyTerminal(job)
	}
	return nil
}

// notifyTerminal emits the one user-facing notification for a terminal
// transition. The scheduler and a per-job monitor can both observe the
// same transition; the dedupe map keeps the user from seeing it twice.
func (e *Engine) notifyTerminal(job Job) {
	e.notifiedMu.Lock()
	seen := e.notified[job.ID]
	e.notified[job.ID] = true
	e.notifiedMu.Unlock()

	if !seen {
		e.notifier.NotifyTerminal(job)
	}
}

// resetNotified re-arms the terminal notification for a retried job.
func (e *Engine) resetNotified(id string) {
	e.notifiedMu.Lock()
	delete(e.notified, id)
	e.notifiedMu.Unlock()
}

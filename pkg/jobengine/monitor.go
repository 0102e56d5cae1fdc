package jobengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrWatchTimeout is returned by a watch whose job did not reach a
// terminal status within the overall wall-clock deadline.
var ErrWatchTimeout = errors.New("jobengine: watch deadline exceeded")

// ErrWatchAbandoned is returned when the retry budget was exhausted and
// monitoring gave up on the job.
var ErrWatchAbandoned = errors.New("jobengine: monitoring gave up")

// Backoff is an exponential delay schedule for repeated status checks.
type Backoff struct {
	// Base is the unit delay.
	Base time.Duration

	// Growth is the exponential factor applied per attempt.
	Growth float64

	// CapExponent bounds the exponent; zero means unbounded (the Ceiling
	// still applies).
	CapExponent int

	// Ceiling bounds the computed delay.
	Ceiling time.Duration

	// MaxAttempts is the check budget before monitoring gives up.
	MaxAttempts int
}

// Delay computes the wait before the nth check (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	exp := n
	if b.CapExponent > 0 && exp > b.CapExponent {
		exp = b.CapExponent
	}
	d := time.Duration(float64(b.Base) * math.Pow(b.Growth, float64(exp)))
	if b.Ceiling > 0 && d > b.Ceiling {
		d = b.Ceiling
	}
	return d
}

// DefaultRunningBackoff polls patiently: a legitimately running job can
// take minutes, so the schedule stretches out and the budget is generous.
func DefaultRunningBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Growth:      1.5,
		CapExponent: 10,
		Ceiling:     30 * time.Second,
		MaxAttempts: 30,
	}
}

// DefaultTransportBackoff retries aggressively but briefly: when the
// backend is unreachable, waiting longer rarely helps.
func DefaultTransportBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Growth:      2,
		Ceiling:     60 * time.Second,
		MaxAttempts: 5,
	}
}

// DefaultWatchDeadline is the overall wall-clock ceiling per watch,
// independent of the backoff schedule.
const DefaultWatchDeadline = 5 * time.Minute

// Watch is the handle for one monitored job. It completes once the job
// reaches a terminal status, the retry budget runs out, the deadline
// expires, or the engine shuts down.
type Watch struct {
	jobID string

	done chan struct{}
	job  Job
	err  error
}

// JobID identifies the watched job.
func (w *Watch) JobID() string { return w.jobID }

// Done is closed when the watch completes.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Result returns the final job and error. Blocks until the watch
// completes unless the supplied context expires first.
func (w *Watch) Result(ctx context.Context) (Job, error) {
	select {
	case <-w.done:
		return w.job, w.err
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// monitorSet owns all live watches and enforces at-most-one-monitor-per-id:
// starting a watch for an id already being watched returns the existing
// handle instead of spawning a second timer chain.
type monitorSet struct {
	mu      sync.Mutex
	watches map[string]*Watch
}

func newMonitorSet() *monitorSet {
	return &monitorSet{watches: make(map[string]*Watch)}
}

// acquire returns the watch for id, creating it when absent. started
// reports whether the caller now owns the monitoring loop.
func (m *monitorSet) acquire(id string) (w *Watch, started bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.watches[id]; ok {
		return existing, false
	}
	w = &Watch{jobID: id, done: make(chan struct{})}
	m.watches[id] = w
	return w, true
}

func (m *monitorSet) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watches, id)
}

func (m *monitorSet) watching(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[id]
	return ok
}

func (m *monitorSet) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// Watch starts monitoring one job until it reaches a terminal status.
// Intended for freshly submitted jobs, so the UI gets fast feedback
// without waiting for the next bulk tick; it runs independently of the
// poll scheduler over the same store. Calling Watch for an id already
// being watched returns the existing handle.
func (e *Engine) Watch(id string) *Watch {
	w, started := e.monitors.acquire(id)
	if !started {
		return w
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runMonitor(w)
	}()
	return w
}

// Watching reports whether a monitor currently exists for the id.
func (e *Engine) Watching(id string) bool {
	return e.monitors.watching(id)
}

func (e *Engine) runMonitor(w *Watch) {
	defer e.monitors.release(w.jobID)

	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.WatchDeadline)
	defer cancel()

	log := e.log.With(zap.String("job_id", w.jobID))

	var checks, failures int
	for {
		snap, err := e.gateway.Status(ctx, w.jobID)
		if ctx.Err() != nil {
			job, _ := e.store.Get(w.jobID)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				e.finishWatch(w, job, fmt.Errorf("%w: job %s", ErrWatchTimeout, w.jobID))
			} else {
				e.finishWatch(w, job, ctx.Err())
			}
			return
		}
		if err != nil {
			failures++
			if failures >= e.cfg.TransportBackoff.MaxAttempts {
				job := e.giveUp(w.jobID, fmt.Sprintf("gave up after %d failed status checks: %v", failures, err))
				e.finishWatch(w, job, fmt.Errorf("%w: %v", ErrWatchAbandoned, err))
				return
			}
			log.Warn("job status check failed",
				zap.Int("failures", failures),
				zap.Error(err))
			if !e.sleepMonitor(ctx, w, e.cfg.TransportBackoff.Delay(failures)) {
				return
			}
			continue
		}

		checks++
		job, changed, becameTerminal := e.store.ApplySnapshot(snap)
		if changed {
			ev := Event{}
			if becameTerminal {
				ev.BecameTerminal = []Job{job}
			} else {
				ev.Updated = []Job{job}
			}
			e.bus.Publish(ev)
		}

		if job.Status.Terminal() {
			e.notifyTerminal(job)
			e.finishWatch(w, job, nil)
			return
		}

		if checks >= e.cfg.RunningBackoff.MaxAttempts {
			forced := e.giveUp(w.jobID, fmt.Sprintf("gave up after %d status checks; job still %s", checks, job.Status))
			e.finishWatch(w, forced, ErrWatchAbandoned)
			return
		}
		if !e.sleepMonitor(ctx, w, e.cfg.RunningBackoff.Delay(checks+1)) {
			return
		}
	}
}

// sleepMonitor waits out one backoff delay. Returns false when the watch
// ended during the wait (deadline or engine shutdown); the watch result is
// already set in that case.
func (e *Engine) sleepMonitor(ctx context.Context, w *Watch, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		job, _ := e.store.Get(w.jobID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.finishWatch(w, job, fmt.Errorf("%w: job %s", ErrWatchTimeout, w.jobID))
		} else {
			e.finishWatch(w, job, ctx.Err())
		}
		return false
	}
}

// giveUp downgrades the job to a locally synthesized error state and
// publishes the transition.
func (e *Engine) giveUp(id, message string) Job {
	job, forced := e.store.ForceLocalError(id, message)
	if forced {
		e.bus.Publish(Event{BecameTerminal: []Job{job}})
		e.notifyTerminal(job)
	}
	return job
}

func (e *Engine) finishWatch(w *Watch, job Job, err error) {
	w.job = job
	w.err = err
	close(w.done)
}

package jobengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
)

// Create submits a new job through the selected transport, optimistically
// inserts it into the active set, publishes a created event, and starts a
// per-job monitor so the caller gets fast feedback ahead of the next bulk
// tick.
func (e *Engine) Create(ctx context.Context, spec gateway.JobSpec) (Job, error) {
	snap, err := e.dispatch.Submit(ctx, spec)
	if err != nil {
		return Job{}, fmt.Errorf("submit job: %w", err)
	}
	if snap.ID == "" {
		return Job{}, fmt.Errorf("submit job: backend returned no id")
	}

	job := e.store.ApplyLocalCreate(snap)
	e.bus.Publish(Event{
		Created: []Job{job},
		Actions: []ActionOutcome{{JobID: job.ID, Op: OpCreate, Accepted: true}},
	})
	e.Watch(job.ID)

	e.log.Info("job submitted",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind))
	return job, nil
}

// Cancel asks the backend to cancel a job. On success it triggers an
// immediate full refresh so the store and subscribers see the cancelled
// state without waiting for the next scheduled tick. A refresh failure
// after a successful cancel is logged, not returned; the next tick
// converges.
func (e *Engine) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := e.dispatch.Cancel(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	e.bus.Publish(Event{Actions: []ActionOutcome{{JobID: id, Op: OpCancel, Accepted: ok}}})
	if !ok {
		return false, nil
	}

	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("refresh after cancel failed",
			zap.String("job_id", id),
			zap.Error(err))
	}
	return true, nil
}

// Retry asks the backend to restart a terminal job under the same id. On
// success it re-arms the terminal notification, refreshes immediately,
// and starts a fresh monitoring cycle. Progress continuity across the
// retry is not assumed; the first post-retry snapshot is authoritative.
func (e *Engine) Retry(ctx context.Context, id string) (bool, error) {
	ok, err := e.dispatch.Retry(ctx, id)
	if err != nil {
		return false, fmt.Errorf("retry job %s: %w", id, err)
	}
	e.bus.Publish(Event{Actions: []ActionOutcome{{JobID: id, Op: OpRetry, Accepted: ok}}})
	if !ok {
		return false, nil
	}

	e.resetNotified(id)
	if err := e.Refresh(ctx); err != nil {
		e.log.Warn("refresh after retry failed",
			zap.String("job_id", id),
			zap.Error(err))
	}
	e.Watch(id)
	return true, nil
}

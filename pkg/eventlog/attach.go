package eventlog

import (
	"context"

	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
)

// Attach subscribes w to the engine's listener bus, recording every
// lifecycle transition as it is published. Write failures are dropped;
// the event log is an observer and must never stall the engine.
// The returned func detaches the writer.
func Attach(e *jobengine.Engine, w Writer) (detach func()) {
	ctx := context.Background()
	return e.Subscribe(func(ev jobengine.Event) {
		for _, job := range ev.Created {
			_ = w.WriteCreated(ctx, &CreatedRecord{
				JobID:   job.ID,
				Kind:    job.Kind,
				Status:  string(job.Status),
				PageURL: job.PageURL,
			})
		}
		for _, job := range ev.Updated {
			_ = w.WriteTransition(ctx, &TransitionRecord{
				JobID:    job.ID,
				Status:   string(job.Status),
				Progress: job.Progress,
				Stage:    job.Stage,
			})
		}
		for _, job := range ev.BecameTerminal {
			_ = w.WriteTerminal(ctx, &TerminalRecord{
				JobID:  job.ID,
				Status: string(job.Status),
				Error:  lastError(job),
			})
		}
		for _, a := range ev.Actions {
			_ = w.WriteAction(ctx, &ActionRecord{
				JobID:    a.JobID,
				Action:   a.Op,
				Accepted: a.Accepted,
			})
		}
	})
}

func lastError(job jobengine.Job) string {
	if len(job.Errors) == 0 {
		return ""
	}
	return job.Errors[len(job.Errors)-1].Message
}

// Package gateway defines the client contract with the remote Marvin job
// backend and provides the reference HTTP/JSON transport.
//
// The backend's internal scheduling is opaque to this package; the only
// contract is the status vocabulary and the five operations below.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

var (
	// ErrNotFound is returned when the backend does not know the job id.
	ErrNotFound = errors.New("gateway: job not found")

	// ErrUnavailable is returned when the backend could not be reached or
	// produced a malformed response. Callers treat this as a transport
	// failure and apply their own retry policy.
	ErrUnavailable = errors.New("gateway: backend unavailable")
)

// JobSpec describes a unit of work to submit.
type JobSpec struct {
	// Kind selects the pipeline: "capture", "analysis", or "assistant".
	Kind string `json:"kind"`

	// PageURL is the page being captured or analyzed.
	PageURL string `json:"page_url,omitempty"`

	// Query is the prompt for assistant jobs.
	Query string `json:"query,omitempty"`

	// Options are pipeline-specific knobs passed through verbatim.
	Options map[string]any `json:"options,omitempty"`
}

// Snapshot is one observation of a job as reported by the backend.
type Snapshot struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind,omitempty"`
	Status    jobstatus.Status `json:"status"`
	Progress  float64          `json:"progress"`
	Stage     string           `json:"stage,omitempty"`
	PageURL   string           `json:"page_url,omitempty"`
	Error     string           `json:"error,omitempty"`
	Result    map[string]any   `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitzero"`
	UpdatedAt time.Time        `json:"updated_at,omitzero"`
}

// Gateway is the operation surface of the remote job backend.
type Gateway interface {
	// Submit enqueues a new job and returns its initial snapshot. The
	// backend assigns the id; ids are never reused.
	Submit(ctx context.Context, spec JobSpec) (Snapshot, error)

	// Status fetches the current snapshot of one job.
	Status(ctx context.Context, id string) (Snapshot, error)

	// Cancel asks the backend to cancel a job. A false return with nil
	// error means the backend declined (already terminal, unknown id).
	Cancel(ctx context.Context, id string) (bool, error)

	// Retry asks the backend to restart a terminal job under the same id.
	Retry(ctx context.Context, id string) (bool, error)

	// ListAll fetches the backend's full view of jobs, active and
	// terminal. Used by the bulk poll scheduler.
	ListAll(ctx context.Context) ([]Snapshot, error)
}

// Package jobengine tracks asynchronous Marvin jobs to completion.
//
// The engine polls the remote backend (no push channel exists), reconciles
// successive snapshots into discrete transition events, and fans those
// events out to subscribers. All state lives in an explicitly constructed
// Engine; there are no package-level singletons.
package jobengine

import (
	"time"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

// HistoryEntry is one past observation of a job. Entries are append-only.
type HistoryEntry struct {
	ObservedAt time.Time        `json:"observed_at"`
	Status     jobstatus.Status `json:"status"`
	Stage      string           `json:"stage,omitempty"`
	Progress   float64          `json:"progress"`
}

// ErrorEntry records one error message reported for a job.
type ErrorEntry struct {
	ObservedAt time.Time `json:"observed_at"`
	Message    string    `json:"message"`
}

// Job is the unit of work tracked by the engine: the latest backend
// snapshot plus the locally accumulated history.
type Job struct {
	ID        string           `json:"id"`
	Kind      string           `json:"kind,omitempty"`
	Status    jobstatus.Status `json:"status"`
	Progress  float64          `json:"progress"`
	Stage     string           `json:"stage,omitempty"`
	PageURL   string           `json:"page_url,omitempty"`
	Result    map[string]any   `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitzero"`
	UpdatedAt time.Time        `json:"updated_at,omitzero"`
	History   []HistoryEntry   `json:"history,omitempty"`
	Errors    []ErrorEntry     `json:"errors,omitempty"`
}

// clone returns a deep copy so callers cannot mutate stored state.
func (j Job) clone() Job {
	out := j
	if j.History != nil {
		out.History = make([]HistoryEntry, len(j.History))
		copy(out.History, j.History)
	}
	if j.Errors != nil {
		out.Errors = make([]ErrorEntry, len(j.Errors))
		copy(out.Errors, j.Errors)
	}
	if j.Result != nil {
		out.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			out.Result[k] = v
		}
	}
	return out
}

// jobFromSnapshot starts a fresh Job from a wire snapshot.
func jobFromSnapshot(snap gateway.Snapshot, now time.Time) Job {
	j := Job{
		ID:        snap.ID,
		Kind:      snap.Kind,
		Status:    snap.Status,
		Progress:  snap.Progress,
		Stage:     snap.Stage,
		PageURL:   snap.PageURL,
		Result:    snap.Result,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	j.appendObservation(snap, now)
	return j
}

// absorb applies a newer snapshot, preserving accumulated history. The
// incoming snapshot is taken as ground truth; no field-level merging.
func (j *Job) absorb(snap gateway.Snapshot, now time.Time) (changed bool) {
	changed = j.Status != snap.Status || j.Progress != snap.Progress || j.Stage != snap.Stage

	j.Kind = firstNonEmpty(snap.Kind, j.Kind)
	j.PageURL = firstNonEmpty(snap.PageURL, j.PageURL)
	j.Status = snap.Status
	j.Progress = snap.Progress
	j.Stage = snap.Stage
	if snap.Result != nil {
		j.Result = snap.Result
	}
	if !snap.CreatedAt.IsZero() {
		j.CreatedAt = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		j.UpdatedAt = snap.UpdatedAt
	}

	if changed {
		j.appendObservation(snap, now)
	}
	return changed
}

func (j *Job) appendObservation(snap gateway.Snapshot, now time.Time) {
	j.History = append(j.History, HistoryEntry{
		ObservedAt: now,
		Status:     snap.Status,
		Stage:      snap.Stage,
		Progress:   snap.Progress,
	})
	if snap.Error != "" {
		j.Errors = append(j.Errors, ErrorEntry{ObservedAt: now, Message: snap.Error})
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ActionOutcome is the result of one control action issued through the
// engine. Declined actions are published too; subscribers decide
// whether they matter.
type ActionOutcome struct {
	JobID    string
	Op       string
	Accepted bool
}

// Op names carried by ActionOutcome.
const (
	OpCreate = "create"
	OpCancel = "cancel"
	OpRetry  = "retry"
)

// Event is one batch of store transitions and action outcomes delivered
// to subscribers. The slices are unordered sets; duplicates across
// events are possible (delivery is at-least-once per transition).
type Event struct {
	Created        []Job
	Updated        []Job
	BecameTerminal []Job
	Actions        []ActionOutcome
}

// Empty reports whether the event carries no transitions or actions.
func (e Event) Empty() bool {
	return len(e.Created) == 0 && len(e.Updated) == 0 &&
		len(e.BecameTerminal) == 0 && len(e.Actions) == 0
}

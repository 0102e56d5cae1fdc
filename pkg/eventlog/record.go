// Package eventlog provides JSONL output for job lifecycle events.
//
// Output is structured as typed record envelopes containing
// transitions, terminal outcomes, and control actions. Each line is a
// self-contained JSON object that can be parsed independently, so the
// log can be tailed by dashboards or replayed into analysis tools.
package eventlog

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: marvin.<type>.v<version>
const (
	// TypeCreated identifies records for newly tracked jobs.
	TypeCreated = "marvin.created.v1"

	// TypeTransition identifies status or progress change records.
	TypeTransition = "marvin.transition.v1"

	// TypeTerminal identifies terminal transition records.
	TypeTerminal = "marvin.terminal.v1"

	// TypeAction identifies control action records.
	TypeAction = "marvin.action.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line contains a Record with a type-specific payload in the Data
// field. The type field determines how to interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "marvin.transition.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// Source identifies the emitting process (e.g., "serve", "watch").
	Source string `json:"source"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// CreatedRecord is the data payload for newly tracked jobs.
type CreatedRecord struct {
	JobID   string `json:"job_id"`
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status"`
	PageURL string `json:"page_url,omitempty"`
}

// TransitionRecord is the data payload for status and progress changes.
type TransitionRecord struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
}

// TerminalRecord is the data payload for terminal transitions.
type TerminalRecord struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`

	// Error carries the last recorded failure message, if any.
	Error string `json:"error,omitempty"`
}

// ActionRecord is the data payload for control actions.
//
// Actions are recorded whether or not the orchestrator accepted them,
// so declined cancels and retries remain visible in the log.
type ActionRecord struct {
	JobID    string `json:"job_id"`
	Action   string `json:"action"`
	Accepted bool   `json:"accepted"`
}

// Action name constants for ActionRecord.
const (
	ActionCreate = "create"
	ActionCancel = "cancel"
	ActionRetry  = "retry"
)

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "eventlog: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

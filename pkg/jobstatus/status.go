// Package jobstatus defines the status vocabulary shared with the Marvin
// job backend.
//
// NOTE: These values travel over the wire and must match the backend
// byte-for-byte. Do not rename.
package jobstatus

import "fmt"

// Status is the lifecycle state of a tracked job.
type Status string

const (
	StatusEnqueued   Status = "enqueued"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAnalyzing  Status = "analyzing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Active reports whether the job is expected to make further progress.
func (s Status) Active() bool {
	switch s {
	case StatusEnqueued, StatusPending, StatusProcessing, StatusAnalyzing:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected without an
// explicit retry.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Known reports whether s is part of the backend vocabulary.
func (s Status) Known() bool {
	return s.Active() || s.Terminal()
}

// Parse validates a raw status string from the wire.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Known() {
		return "", fmt.Errorf("unknown job status: %q", raw)
	}
	return s, nil
}

// All lists the full vocabulary, active states first.
func All() []Status {
	return []Status{
		StatusEnqueued,
		StatusPending,
		StatusProcessing,
		StatusAnalyzing,
		StatusComplete,
		StatusError,
		StatusCancelled,
	}
}

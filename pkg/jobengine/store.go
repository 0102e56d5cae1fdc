package jobengine

import (
	"sort"
	"sync"
	"time"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

// Store is the in-memory registry of tracked jobs, partitioned into an
// active set and a completed set. A job id is present in at most one of
// the two sets at any time.
//
// The store only mutates state; deriving transition events from a refresh
// is the reconciler's job, and notifying subscribers is the bus's.
type Store struct {
	mu        sync.RWMutex
	active    map[string]Job
	completed map[string]Job

	// now is a hook for tests.
	now func() time.Time
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{
		active:    make(map[string]Job),
		completed: make(map[string]Job),
		now:       time.Now,
	}
}

// UpsertFromSnapshot replaces the store's view of all jobs in one atomic
// step. Membership follows the incoming snapshot exactly; ids the backend
// no longer reports are dropped. History accumulated for known ids is
// carried over and extended.
//
// Returns the previous active set and the new active/completed sets so the
// caller can reconcile without re-locking. Snapshots arriving out of order
// are not merged; the most recently applied snapshot wins.
func (s *Store) UpsertFromSnapshot(snaps []gateway.Snapshot) (prevActive, active, completed []Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	prevActive = make([]Job, 0, len(s.active))
	for _, j := range s.active {
		prevActive = append(prevActive, j.clone())
	}

	nextActive := make(map[string]Job, len(snaps))
	nextCompleted := make(map[string]Job)
	for _, snap := range snaps {
		if snap.ID == "" {
			continue
		}
		job, ok := s.lookupLocked(snap.ID)
		if ok {
			job.absorb(snap, now)
		} else {
			job = jobFromSnapshot(snap, now)
		}
		if job.Status.Terminal() {
			nextCompleted[job.ID] = job
		} else {
			nextActive[job.ID] = job
		}
	}

	s.active = nextActive
	s.completed = nextCompleted

	return prevActive, s.listLocked(s.active), s.listLocked(s.completed)
}

// ApplySnapshot merges a single-job snapshot, moving the job between sets
// when its status crosses the terminal boundary. Used by per-job monitors;
// the bulk refresh goes through UpsertFromSnapshot.
func (s *Store) ApplySnapshot(snap gateway.Snapshot) (job Job, changed, becameTerminal bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.lookupLocked(snap.ID)
	if !ok {
		existing = jobFromSnapshot(snap, now)
		changed = true
		becameTerminal = existing.Status.Terminal()
	} else {
		wasActive := !existing.Status.Terminal()
		changed = existing.absorb(snap, now)
		becameTerminal = wasActive && existing.Status.Terminal()
	}

	s.placeLocked(existing)
	return existing.clone(), changed, becameTerminal
}

// ApplyLocalCreate optimistically inserts a freshly submitted job into the
// active set ahead of confirmation by the next refresh.
func (s *Store) ApplyLocalCreate(snap gateway.Snapshot) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := jobFromSnapshot(snap, s.now())
	if !job.Status.Known() {
		job.Status = jobstatus.StatusEnqueued
	}
	s.placeLocked(job)
	return job.clone()
}

// ForceLocalError downgrades a job to a locally synthesized terminal error
// state. Used when monitoring gives up (retry budget or deadline
// exhausted); the backend may disagree on the next full refresh, and that
// refresh wins.
func (s *Store) ForceLocalError(id, message string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.lookupLocked(id)
	if !ok {
		return Job{}, false
	}
	if job.Status.Terminal() {
		return job.clone(), false
	}

	now := s.now()
	job.Status = jobstatus.StatusError
	job.UpdatedAt = now
	job.History = append(job.History, HistoryEntry{
		ObservedAt: now,
		Status:     jobstatus.StatusError,
		Stage:      job.Stage,
		Progress:   job.Progress,
	})
	job.Errors = append(job.Errors, ErrorEntry{ObservedAt: now, Message: message})

	s.placeLocked(job)
	return job.clone(), true
}

// Get returns a copy of the job, or false if the id is unknown.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.lookupLocked(id)
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// ListActive returns copies of all non-terminal jobs, newest first.
func (s *Store) ListActive() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(s.active)
}

// ListCompleted returns copies of all terminal jobs, newest first.
func (s *Store) ListCompleted() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(s.completed)
}

// ActiveCount reports the size of the active set without copying.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func (s *Store) lookupLocked(id string) (Job, bool) {
	if j, ok := s.active[id]; ok {
		return j, true
	}
	j, ok := s.completed[id]
	return j, ok
}

// placeLocked files the job into exactly one of the two sets.
func (s *Store) placeLocked(job Job) {
	if job.Status.Terminal() {
		delete(s.active, job.ID)
		s.completed[job.ID] = job
	} else {
		delete(s.completed, job.ID)
		s.active[job.ID] = job
	}
}

func (s *Store) listLocked(set map[string]Job) []Job {
	out := make([]Job, 0, len(set))
	for _, j := range set {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool {
		ti, tk := jobSortTime(out[i]), jobSortTime(out[k])
		if ti.Equal(tk) {
			return out[i].ID < out[k].ID
		}
		return ti.After(tk)
	})
	return out
}

func jobSortTime(j Job) time.Time {
	if !j.UpdatedAt.IsZero() {
		return j.UpdatedAt.UTC()
	}
	return j.CreatedAt.UTC()
}

package jobengine

// Diff is the set of transitions derived from two successive full
// snapshots. BecameTerminal and Updated are unordered sets.
type Diff struct {
	BecameTerminal []Job
	Updated        []Job
}

// Empty reports whether the refresh produced no transitions.
func (d Diff) Empty() bool {
	return len(d.BecameTerminal) == 0 && len(d.Updated) == 0
}

// Reconcile computes transitions between the previous active set and a
// freshly fetched full job list. The backend does not tag deltas, so the
// diff is derived purely from set membership and field comparison:
//
//   - An id active before but absent from the new active set is looked up
//     in the new completed set; found there, it became terminal. Found
//     nowhere, the job vanished and is dropped without an event. Backends
//     trim history eventually, so a vanished id is not treated as an
//     error.
//   - An id active in both snapshots is reported as updated on any change
//     to status, progress, or stage. No thresholding; subscribers coalesce
//     noisy updates themselves if they care.
func Reconcile(prevActive, newActive, newCompleted []Job) Diff {
	var d Diff

	activeNow := make(map[string]Job, len(newActive))
	for _, j := range newActive {
		activeNow[j.ID] = j
	}
	completedNow := make(map[string]Job, len(newCompleted))
	for _, j := range newCompleted {
		completedNow[j.ID] = j
	}

	for _, prev := range prevActive {
		if cur, ok := activeNow[prev.ID]; ok {
			if cur.Status != prev.Status || cur.Progress != prev.Progress || cur.Stage != prev.Stage {
				d.Updated = append(d.Updated, cur)
			}
			continue
		}
		if cur, ok := completedNow[prev.ID]; ok {
			d.BecameTerminal = append(d.BecameTerminal, cur)
		}
		// Absent from both sets: vanished, deliberately silent.
	}

	return d
}

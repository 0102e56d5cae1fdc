package jobengine

import (
	"testing"
	"time"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

func snap(id string, status jobstatus.Status, progress float64) gateway.Snapshot {
	return gateway.Snapshot{ID: id, Status: status, Progress: progress}
}

func TestStore_UpsertPartitionsByStatus(t *testing.T) {
	s := NewStore()

	_, active, completed := s.UpsertFromSnapshot([]gateway.Snapshot{
		snap("a", jobstatus.StatusProcessing, 10),
		snap("b", jobstatus.StatusComplete, 100),
		snap("c", jobstatus.StatusEnqueued, 0),
	})

	if len(active) != 2 {
		t.Fatalf("active count: got=%d want=2", len(active))
	}
	if len(completed) != 1 {
		t.Fatalf("completed count: got=%d want=1", len(completed))
	}
	if completed[0].ID != "b" {
		t.Fatalf("completed[0]: got=%q want=%q", completed[0].ID, "b")
	}
}

func TestStore_IDInAtMostOneSet(t *testing.T) {
	s := NewStore()

	s.UpsertFromSnapshot([]gateway.Snapshot{snap("a", jobstatus.StatusProcessing, 40)})
	s.UpsertFromSnapshot([]gateway.Snapshot{snap("a", jobstatus.StatusComplete, 100)})

	if len(s.ListActive()) != 0 {
		t.Fatalf("job should have left the active set")
	}
	if len(s.ListCompleted()) != 1 {
		t.Fatalf("job should be in the completed set")
	}

	// And back, via a retry observed on refresh.
	s.UpsertFromSnapshot([]gateway.Snapshot{snap("a", jobstatus.StatusProcessing, 0)})
	if len(s.ListActive()) != 1 || len(s.ListCompleted()) != 0 {
		t.Fatalf("job should be active only: active=%d completed=%d",
			len(s.ListActive()), len(s.ListCompleted()))
	}
}

func TestStore_HistoryIsAppendOnly(t *testing.T) {
	s := NewStore()

	s.UpsertFromSnapshot([]gateway.Snapshot{snap("a", jobstatus.StatusEnqueued, 0)})
	prevLen := 0
	steps := []gateway.Snapshot{
		snap("a", jobstatus.StatusProcessing, 10),
		snap("a", jobstatus.StatusProcessing, 10), // no change, no new entry
		snap("a", jobstatus.StatusAnalyzing, 60),
		snap("a", jobstatus.StatusComplete, 100),
	}

	for i, st := range steps {
		s.UpsertFromSnapshot([]gateway.Snapshot{st})
		job, ok := s.Get("a")
		if !ok {
			t.Fatalf("step %d: job vanished", i)
		}
		if len(job.History) < prevLen {
			t.Fatalf("step %d: history shrank from %d to %d", i, prevLen, len(job.History))
		}
		prevLen = len(job.History)
	}

	job, _ := s.Get("a")
	// enqueued, processing, analyzing, complete; the duplicate snapshot
	// must not add an entry.
	if len(job.History) != 4 {
		t.Fatalf("history length: got=%d want=4", len(job.History))
	}
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := NewStore()
	s.UpsertFromSnapshot([]gateway.Snapshot{snap("a", jobstatus.StatusProcessing, 10)})

	job, _ := s.Get("a")
	job.Status = jobstatus.StatusError
	job.History[0].Progress = 999

	fresh, _ := s.Get("a")
	if fresh.Status != jobstatus.StatusProcessing {
		t.Fatal("caller mutation leaked into the store")
	}
	if fresh.History[0].Progress == 999 {
		t.Fatal("caller mutation of history leaked into the store")
	}

	listed := s.ListActive()
	listed[0].Stage = "hacked"
	fresh, _ = s.Get("a")
	if fresh.Stage == "hacked" {
		t.Fatal("caller mutation via ListActive leaked into the store")
	}
}

func TestStore_ApplyLocalCreate(t *testing.T) {
	s := NewStore()

	job := s.ApplyLocalCreate(gateway.Snapshot{ID: "fresh", Status: jobstatus.StatusEnqueued})
	if job.ID != "fresh" {
		t.Fatalf("unexpected id: %q", job.ID)
	}
	if got := s.ListActive(); len(got) != 1 {
		t.Fatalf("active count: got=%d want=1", len(got))
	}

	// A backend that omits the status still lands the job in the active set.
	s2 := NewStore()
	job = s2.ApplyLocalCreate(gateway.Snapshot{ID: "bare"})
	if job.Status != jobstatus.StatusEnqueued {
		t.Fatalf("default status: got=%q want=%q", job.Status, jobstatus.StatusEnqueued)
	}
}

func TestStore_ApplySnapshotMovesAcrossSets(t *testing.T) {
	s := NewStore()
	s.ApplyLocalCreate(snap("a", jobstatus.StatusProcessing, 20))

	job, changed, becameTerminal := s.ApplySnapshot(snap("a", jobstatus.StatusProcessing, 55))
	if !changed || becameTerminal {
		t.Fatalf("progress bump: changed=%v becameTerminal=%v", changed, becameTerminal)
	}
	if job.Progress != 55 {
		t.Fatalf("progress: got=%v want=55", job.Progress)
	}

	_, changed, becameTerminal = s.ApplySnapshot(snap("a", jobstatus.StatusComplete, 100))
	if !changed || !becameTerminal {
		t.Fatalf("completion: changed=%v becameTerminal=%v", changed, becameTerminal)
	}
	if len(s.ListActive()) != 0 || len(s.ListCompleted()) != 1 {
		t.Fatalf("job should have moved to completed")
	}

	// Unchanged terminal snapshot: no transition, no change.
	_, changed, becameTerminal = s.ApplySnapshot(snap("a", jobstatus.StatusComplete, 100))
	if changed || becameTerminal {
		t.Fatalf("idempotent snapshot: changed=%v becameTerminal=%v", changed, becameTerminal)
	}
}

func TestStore_ForceLocalError(t *testing.T) {
	s := NewStore()
	s.ApplyLocalCreate(snap("a", jobstatus.StatusProcessing, 30))

	job, forced := s.ForceLocalError("a", "gave up after 30 attempts")
	if !forced {
		t.Fatal("expected the downgrade to apply")
	}
	if job.Status != jobstatus.StatusError {
		t.Fatalf("status: got=%q want=%q", job.Status, jobstatus.StatusError)
	}
	if len(job.Errors) != 1 || job.Errors[0].Message != "gave up after 30 attempts" {
		t.Fatalf("error entry missing: %+v", job.Errors)
	}
	if len(s.ListCompleted()) != 1 {
		t.Fatal("job should be in the completed set")
	}

	// Already terminal: no second downgrade.
	if _, forced := s.ForceLocalError("a", "again"); forced {
		t.Fatal("terminal job must not be downgraded twice")
	}
	if _, forced := s.ForceLocalError("ghost", "nope"); forced {
		t.Fatal("unknown id must not be downgraded")
	}
}

func TestStore_UpsertDropsVanishedJobs(t *testing.T) {
	s := NewStore()
	s.UpsertFromSnapshot([]gateway.Snapshot{
		snap("a", jobstatus.StatusProcessing, 10),
		snap("b", jobstatus.StatusProcessing, 20),
	})

	s.UpsertFromSnapshot([]gateway.Snapshot{snap("b", jobstatus.StatusProcessing, 25)})

	if _, ok := s.Get("a"); ok {
		t.Fatal("vanished job should have been dropped")
	}
}

func TestStore_ListOrderNewestFirst(t *testing.T) {
	s := NewStore()
	t1 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	s.UpsertFromSnapshot([]gateway.Snapshot{
		{ID: "old", Status: jobstatus.StatusProcessing, UpdatedAt: t1},
		{ID: "new", Status: jobstatus.StatusProcessing, UpdatedAt: t2},
	})

	got := s.ListActive()
	if got[0].ID != "new" {
		t.Fatalf("expected newest first, got[0]=%q", got[0].ID)
	}
}

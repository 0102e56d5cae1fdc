package jobengine

import (
	"testing"

	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

func job(id string, status jobstatus.Status, progress float64) Job {
	return Job{ID: id, Status: status, Progress: progress}
}

func TestReconcile_BecameTerminal(t *testing.T) {
	prev := []Job{job("a", jobstatus.StatusProcessing, 80)}
	newActive := []Job{}
	newCompleted := []Job{job("a", jobstatus.StatusComplete, 100)}

	d := Reconcile(prev, newActive, newCompleted)

	if len(d.BecameTerminal) != 1 || d.BecameTerminal[0].ID != "a" {
		t.Fatalf("becameTerminal: %+v", d.BecameTerminal)
	}
	if d.BecameTerminal[0].Status != jobstatus.StatusComplete {
		t.Fatalf("terminal status: %q", d.BecameTerminal[0].Status)
	}
	if len(d.Updated) != 0 {
		t.Fatalf("updated should be empty: %+v", d.Updated)
	}
}

func TestReconcile_ProgressUpdate(t *testing.T) {
	prev := []Job{job("a", jobstatus.StatusProcessing, 40)}
	newActive := []Job{job("a", jobstatus.StatusProcessing, 70)}

	d := Reconcile(prev, newActive, nil)

	if len(d.Updated) != 1 || d.Updated[0].Progress != 70 {
		t.Fatalf("updated: %+v", d.Updated)
	}
	if len(d.BecameTerminal) != 0 {
		t.Fatalf("becameTerminal should be empty: %+v", d.BecameTerminal)
	}
}

func TestReconcile_StageChangeCounts(t *testing.T) {
	prev := []Job{{ID: "a", Status: jobstatus.StatusAnalyzing, Progress: 50, Stage: "embedding"}}
	newActive := []Job{{ID: "a", Status: jobstatus.StatusAnalyzing, Progress: 50, Stage: "linking"}}

	d := Reconcile(prev, newActive, nil)
	if len(d.Updated) != 1 {
		t.Fatalf("stage-only change must count as updated: %+v", d)
	}
}

func TestReconcile_NoChangeNoEvent(t *testing.T) {
	prev := []Job{job("a", jobstatus.StatusProcessing, 40)}
	newActive := []Job{job("a", jobstatus.StatusProcessing, 40)}

	d := Reconcile(prev, newActive, nil)
	if !d.Empty() {
		t.Fatalf("identical snapshots must not produce events: %+v", d)
	}
}

func TestReconcile_VanishedJobIsSilentlyDropped(t *testing.T) {
	prev := []Job{job("ghost", jobstatus.StatusProcessing, 10)}

	d := Reconcile(prev, nil, nil)
	if !d.Empty() {
		t.Fatalf("vanished job must not fire events: %+v", d)
	}
}

func TestReconcile_MultipleJobsInOneCycle(t *testing.T) {
	prev := []Job{
		job("a", jobstatus.StatusProcessing, 10),
		job("b", jobstatus.StatusAnalyzing, 90),
		job("c", jobstatus.StatusEnqueued, 0),
	}
	newActive := []Job{
		job("a", jobstatus.StatusProcessing, 35),
		job("c", jobstatus.StatusEnqueued, 0),
	}
	newCompleted := []Job{job("b", jobstatus.StatusError, 90)}

	d := Reconcile(prev, newActive, newCompleted)

	if len(d.Updated) != 1 || d.Updated[0].ID != "a" {
		t.Fatalf("updated: %+v", d.Updated)
	}
	if len(d.BecameTerminal) != 1 || d.BecameTerminal[0].ID != "b" {
		t.Fatalf("becameTerminal: %+v", d.BecameTerminal)
	}
}

func TestReconcile_NewJobsProduceNoEvents(t *testing.T) {
	// Jobs appearing for the first time are not "updated"; creation events
	// come from the action facade, not the reconciler.
	newActive := []Job{job("brand-new", jobstatus.StatusEnqueued, 0)}

	d := Reconcile(nil, newActive, nil)
	if !d.Empty() {
		t.Fatalf("first sighting must not fire events: %+v", d)
	}
}

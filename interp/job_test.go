package interp

import (
	"testing"
	"time"
)

func TestJobManagerLifecycle(t *testing.T) {
	jm := NewJobManager()
	j1 := jm.NewJob("sleep 1 &")
	j2 := jm.NewJob("sleep 2 &")

	if j1.ID != 1 || j2.ID != 2 {
		t.Fatalf("job ids = %d, %d, want 1, 2", j1.ID, j2.ID)
	}
	if cur, ok := jm.Current(); !ok || cur.ID != j2.ID {
		t.Errorf("Current() = %+v, %v, want job 2", cur, ok)
	}
	if prev, ok := jm.Previous(); !ok || prev.ID != j1.ID {
		t.Errorf("Previous() = %+v, %v, want job 1", prev, ok)
	}

	jm.MarkDone(j1.ID, 0)
	got, ok := jm.Get(j1.ID)
	if !ok || got.State != JobDone || got.Status != 0 {
		t.Errorf("Get(1) = %+v, %v, want Done/0", got, ok)
	}

	jm.MarkStopped(j2.ID)
	got, ok = jm.Get(j2.ID)
	if !ok || got.State != JobStopped {
		t.Errorf("Get(2) = %+v, %v, want Stopped", got, ok)
	}
}

func TestJobManagerListOrder(t *testing.T) {
	jm := NewJobManager()
	jm.NewJob("a")
	jm.NewJob("b")
	jm.NewJob("c")
	list := jm.List()
	if len(list) != 3 {
		t.Fatalf("got %d jobs, want 3", len(list))
	}
	for i, j := range list {
		if j.ID != i+1 {
			t.Errorf("List()[%d].ID = %d, want %d", i, j.ID, i+1)
		}
	}
}

func TestJobManagerReap(t *testing.T) {
	jm := NewJobManager()
	j1 := jm.NewJob("a")
	jm.NewJob("b")
	jm.MarkDone(j1.ID, 0)
	jm.Reap()
	if _, ok := jm.Get(j1.ID); ok {
		t.Error("expected job 1 to be reaped")
	}
	if len(jm.List()) != 1 {
		t.Errorf("got %d jobs after reap, want 1", len(jm.List()))
	}
}

func TestJobManagerWaitBlocksUntilDone(t *testing.T) {
	jm := NewJobManager()
	j := jm.NewJob("sleep")
	go func() {
		time.Sleep(20 * time.Millisecond)
		jm.MarkDone(j.ID, 7)
	}()
	status, ok := jm.Wait(j.ID)
	if !ok || status != 7 {
		t.Errorf("Wait(%d) = %d, %v, want 7, true", j.ID, status, ok)
	}
}

func TestJobManagerWaitUnknownJob(t *testing.T) {
	jm := NewJobManager()
	if _, ok := jm.Wait(999); ok {
		t.Error("Wait on an unknown job id should report ok=false")
	}
}

func TestJobManagerWaitAll(t *testing.T) {
	jm := NewJobManager()
	j1 := jm.NewJob("a")
	j2 := jm.NewJob("b")
	go func() {
		time.Sleep(10 * time.Millisecond)
		jm.MarkDone(j1.ID, 0)
		jm.MarkDone(j2.ID, 0)
	}()
	jm.WaitAll()
	for _, j := range jm.List() {
		if j.State != JobDone {
			t.Errorf("job %d state = %v after WaitAll, want Done", j.ID, j.State)
		}
	}
}

func TestJobStateString(t *testing.T) {
	tests := map[JobState]string{
		JobRunning: "Running",
		JobStopped: "Stopped",
		JobDone:    "Done",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", state, got, want)
		}
	}
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob(PersonaRequest{Documents: docs(), Persona: "p", JobToBeDone: "j"})
	if job.Status != StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if len(job.Documents) != 2 || job.Documents[0] != "energy.md" {
		t.Errorf("unexpected documents %v", job.Documents)
	}

	job.SetStatus(StatusRanking)
	if job.Snapshot().Status != StatusRanking {
		t.Errorf("expected ranking, got %s", job.Snapshot().Status)
	}

	res := &PersonaResult{}
	job.Complete(res)
	got, ok := job.Result()
	if !ok || got != res {
		t.Fatal("expected completed result")
	}

	job.Fail(errors.New("late failure"))
	job.Cancel()
	if st := job.Snapshot().Status; st != StatusCompleted {
		t.Errorf("expected terminal status to stick, got %s", st)
	}
}

func TestJob_FailRecordsError(t *testing.T) {
	job := NewJob(PersonaRequest{})
	job.Fail(errors.New("boom"))
	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Error != "boom" {
		t.Errorf("expected failed with error, got %+v", snap)
	}
	if _, ok := job.Result(); ok {
		t.Error("expected no result for failed job")
	}
}

func TestJobStore_CleanupOnlyFinished(t *testing.T) {
	store := NewJobStore(time.Millisecond)
	done := NewJob(PersonaRequest{})
	done.Complete(&PersonaResult{})
	running := NewJob(PersonaRequest{})
	store.Put(done)
	store.Put(running)

	time.Sleep(5 * time.Millisecond)
	if n := store.Cleanup(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if store.Get(done.ID) != nil {
		t.Error("expected finished job evicted")
	}
	if store.Get(running.ID) == nil {
		t.Error("expected queued job kept")
	}
}

func TestJobStore_ListAndCounts(t *testing.T) {
	store := NewJobStore(time.Hour)
	a := NewJob(PersonaRequest{})
	time.Sleep(time.Millisecond)
	b := NewJob(PersonaRequest{})
	b.Fail(errors.New("x"))
	store.Put(a)
	store.Put(b)

	list := store.List()
	if len(list) != 2 || list[0].ID != b.ID {
		t.Errorf("expected newest first, got %+v", list)
	}
	counts := store.Counts()
	if counts[StatusQueued] != 1 || counts[StatusFailed] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if !store.Delete(a.ID) || store.Delete(a.ID) {
		t.Error("expected delete to report existence once")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, newTestService(), quietLog())

	if err := o.Submit(NewJob(PersonaRequest{Documents: docs()})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejected := NewJob(PersonaRequest{Documents: docs()})
	if err := o.Submit(rejected); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if st := rejected.Snapshot().Status; st != StatusFailed {
		t.Errorf("expected rejected job failed, got %s", st)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_ProcessesJob(t *testing.T) {
	o := NewOrchestrator(testConfig(), newTestService(), quietLog())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(PersonaRequest{Documents: docs(), Persona: "Planner", JobToBeDone: "energy plan"})
	if err := o.Submit(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !job.Snapshot().Status.Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %s", job.Snapshot().Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	res, ok := job.Result()
	if !ok {
		t.Fatalf("expected completed job, got %+v", job.Snapshot())
	}
	if res.Metadata.Persona != "Planner" || len(res.ExtractedSections) != 4 {
		t.Errorf("unexpected result %+v", res.Metadata)
	}
	if o.Service().Latency().Snapshot()["job"].Count != 1 {
		t.Error("expected job latency recorded")
	}
}

func TestOrchestrator_CancelQueuedJob(t *testing.T) {
	o := NewOrchestrator(testConfig(), newTestService(), quietLog())
	job := NewJob(PersonaRequest{Documents: docs()})
	if err := o.Submit(job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.CancelJob(job.ID) {
		t.Fatal("expected cancel to find the job")
	}
	if o.GetJob(job.ID) != nil {
		t.Error("expected cancelled job removed")
	}
	if st := job.Snapshot().Status; st != StatusCancelled {
		t.Errorf("expected cancelled, got %s", st)
	}
	if o.CancelJob("unknown") {
		t.Error("expected false for unknown job")
	}

	// A worker picking up the cancelled job leaves it untouched.
	NewWorker(o.Service(), quietLog()).Process(context.Background(), job)
	if st := job.Snapshot().Status; st != StatusCancelled {
		t.Errorf("expected status to stay cancelled, got %s", st)
	}
}

package orchestrator

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
)

func newTask(policy domain.OverlapPolicy, maxInstances, maxQueue int) *domain.Task {
	return &domain.Task{
		ID:            uuid.New(),
		OverlapPolicy: policy,
		MaxInstances:  maxInstances,
		MaxQueueSize:  maxQueue,
	}
}

func TestAdmit_Allow(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapAllow, 1, 0)

	// ALLOW starts every run regardless of how many are already running
	for i := 0; i < 5; i++ {
		d, _ := a.Admit(task, uuid.New())
		if d != DecisionStart {
			t.Fatalf("run %d: expected start, got %s", i, d)
		}
	}
	if a.Running(task.ID) != 5 {
		t.Errorf("expected 5 running, got %d", a.Running(task.ID))
	}
}

func TestAdmit_Skip(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapSkip, 1, 0)

	d, _ := a.Admit(task, uuid.New())
	if d != DecisionStart {
		t.Fatalf("first run should start, got %s", d)
	}

	d, reason := a.Admit(task, uuid.New())
	if d != DecisionReject {
		t.Fatalf("second run should be rejected, got %s", d)
	}
	if reason != ReasonSkipped {
		t.Errorf("expected reason %q, got %q", ReasonSkipped, reason)
	}

	// After the slot frees, the next run starts again
	a.Release(task.ID)
	d, _ = a.Admit(task, uuid.New())
	if d != DecisionStart {
		t.Errorf("expected start after release, got %s", d)
	}
}

func TestAdmit_SkipMultipleInstances(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapSkip, 2, 0)

	for i := 0; i < 2; i++ {
		if d, _ := a.Admit(task, uuid.New()); d != DecisionStart {
			t.Fatalf("run %d should start, got %s", i, d)
		}
	}
	if d, _ := a.Admit(task, uuid.New()); d != DecisionReject {
		t.Errorf("third run should be rejected, got %s", d)
	}
}

func TestAdmit_DefaultMaxInstances(t *testing.T) {
	a := NewAdmission()
	// max_instances left zero falls back to 1
	task := newTask(domain.OverlapSkip, 0, 0)

	a.Admit(task, uuid.New())
	if d, _ := a.Admit(task, uuid.New()); d != DecisionReject {
		t.Errorf("expected reject with default limit of 1, got %s", d)
	}
}

func TestAdmit_Queue(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapQueue, 1, 2)

	running := uuid.New()
	if d, _ := a.Admit(task, running); d != DecisionStart {
		t.Fatal("first run should start")
	}

	first, second := uuid.New(), uuid.New()
	if d, _ := a.Admit(task, first); d != DecisionEnqueue {
		t.Fatal("second run should be enqueued")
	}
	if d, _ := a.Admit(task, second); d != DecisionEnqueue {
		t.Fatal("third run should be enqueued")
	}

	// Queue is at capacity
	d, reason := a.Admit(task, uuid.New())
	if d != DecisionReject {
		t.Fatalf("expected reject, got %s", d)
	}
	if reason != ReasonQueueFull {
		t.Errorf("expected reason %q, got %q", ReasonQueueFull, reason)
	}

	// Releases hand the slot to waiters in FIFO order
	next, ok := a.Release(task.ID)
	if !ok || next != first {
		t.Errorf("expected first queued run, got %v (ok=%v)", next, ok)
	}
	next, ok = a.Release(task.ID)
	if !ok || next != second {
		t.Errorf("expected second queued run, got %v (ok=%v)", next, ok)
	}

	// Slot count stays stable across the handoffs
	if a.Running(task.ID) != 1 {
		t.Errorf("expected 1 running, got %d", a.Running(task.ID))
	}

	if _, ok := a.Release(task.ID); ok {
		t.Error("empty queue should not hand out a run")
	}
}

func TestAdmit_QueueUnbounded(t *testing.T) {
	a := NewAdmission()
	// max_queue_size of zero means no cap
	task := newTask(domain.OverlapQueue, 1, 0)

	a.Admit(task, uuid.New())
	for i := 0; i < 10; i++ {
		if d, _ := a.Admit(task, uuid.New()); d != DecisionEnqueue {
			t.Fatalf("run %d should be enqueued, got %s", i, d)
		}
	}
	if a.Queued(task.ID) != 10 {
		t.Errorf("expected 10 queued, got %d", a.Queued(task.ID))
	}
}

func TestRelease_UnknownTask(t *testing.T) {
	a := NewAdmission()
	if _, ok := a.Release(uuid.New()); ok {
		t.Error("release of an unknown task should be a no-op")
	}
}

func TestRelease_ReclaimsState(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapSkip, 1, 0)

	a.Admit(task, uuid.New())
	a.Release(task.ID)

	if a.Running(task.ID) != 0 || a.Queued(task.ID) != 0 {
		t.Error("state should be empty after the last release")
	}

	// A fresh run after reclaim starts cleanly
	if d, _ := a.Admit(task, uuid.New()); d != DecisionStart {
		t.Error("expected start after state reclaim")
	}
}

func TestAdmission_Concurrent(t *testing.T) {
	a := NewAdmission()
	task := newTask(domain.OverlapAllow, 1, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Admit(task, uuid.New())
			a.Release(task.ID)
		}()
	}
	wg.Wait()

	if a.Running(task.ID) != 0 {
		t.Errorf("expected all slots released, got %d", a.Running(task.ID))
	}
}

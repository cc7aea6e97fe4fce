package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
)

func newExecution() *domain.Execution {
	return &domain.Execution{
		ID:          uuid.New(),
		TaskID:      uuid.New(),
		WorkspaceID: uuid.New(),
		Status:      domain.ExecutionStatusPending,
		CreatedAt:   time.Now(),
	}
}

func newChainExecutor() *ChainExecutor {
	return NewChainExecutor(NewStepExecutor(nil, nil), nil)
}

func TestChainRun_VariableFlow(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok-123"}`))
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{
				StepOrder:        1,
				URL:              srv.URL + "/login",
				ExtractVariables: map[string]string{"token": "token"},
			},
			{
				StepOrder: 2,
				URL:       srv.URL + "/orders",
				Headers:   map[string]string{"Authorization": "Bearer {{token}}"},
			},
		},
	}

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", exec.Status, exec.Error)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(records))
	}
	// Variables extracted by step 1 reach step 2
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected interpolated token in step 2, got %q", gotAuth)
	}
	if records[0].Extracted["token"] != "tok-123" {
		t.Errorf("expected extraction recorded on step 1, got %v", records[0].Extracted)
	}
	if exec.StartedAt == nil || exec.FinishedAt == nil {
		t.Error("expected started and finished timestamps")
	}
}

func TestChainRun_InitialVariables(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL + "/env/{{env}}"},
		},
	}

	exec := newExecution()
	exec.Variables = map[string]string{"env": "prod"}
	newChainExecutor().Run(context.Background(), exec, chain)

	if gotPath != "/env/prod" {
		t.Errorf("expected initial variables in bindings, got %q", gotPath)
	}
}

func TestChainRun_StopsOnUntoleratedFailure(t *testing.T) {
	var step2Called bool
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		step2Called = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL + "/a"},
			{StepOrder: 2, URL: srv.URL + "/b"},
		},
	}

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if !strings.Contains(exec.Error, "step 1") {
		t.Errorf("expected error to name the failed step, got %q", exec.Error)
	}
	// The unattempted step gets no record at all
	if len(records) != 1 {
		t.Fatalf("expected 1 step record, got %d", len(records))
	}
	if step2Called {
		t.Error("step 2 should not be attempted after an untolerated failure")
	}
}

func TestChainRun_ContinueOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL + "/a", ContinueOnFailure: true},
			{StepOrder: 2, URL: srv.URL + "/b"},
		},
	}

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	// Tolerated failure plus a success: PARTIAL
	if exec.Status != domain.ExecutionStatusPartial {
		t.Fatalf("expected PARTIAL, got %s", exec.Status)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(records))
	}
	if records[0].Status != domain.StepStatusFailed {
		t.Errorf("expected step 1 FAILED, got %s", records[0].Status)
	}
	if records[1].Status != domain.StepStatusSuccess {
		t.Errorf("expected step 2 SUCCESS, got %s", records[1].Status)
	}
}

func TestChainRun_StopOnFailureOverridesStepTolerance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	chain := &domain.TaskChain{
		StopOnFailure: true,
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL, ContinueOnFailure: true},
			{StepOrder: 2, URL: srv.URL},
		},
	}

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if len(records) != 1 {
		t.Errorf("expected chain to stop after step 1, got %d records", len(records))
	}
}

func TestChainRun_AllToleratedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL, ContinueOnFailure: true},
			{StepOrder: 2, URL: srv.URL, ContinueOnFailure: true},
		},
	}

	exec := newExecution()
	newChainExecutor().Run(context.Background(), exec, chain)

	// Every attempted step failed: FAILED, not PARTIAL
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
}

func TestChainRun_SkippedStepContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &domain.TaskChain{
		Steps: []domain.ChainStep{
			{
				StepOrder: 1,
				URL:       srv.URL + "/check",
				Condition: &domain.StepCondition{
					Operator: domain.OpEquals,
					Field:    "status",
					Value:    "done",
				},
			},
			{StepOrder: 2, URL: srv.URL + "/next"},
		},
	}

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", exec.Status)
	}
	if records[0].Status != domain.StepStatusSkipped {
		t.Errorf("expected step 1 SKIPPED, got %s", records[0].Status)
	}
	if records[1].Status != domain.StepStatusSuccess {
		t.Errorf("expected step 2 SUCCESS, got %s", records[1].Status)
	}
}

func TestChainRun_DeadlineCancelsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	chain := &domain.TaskChain{
		TimeoutSec: 1,
		Steps: []domain.ChainStep{
			{StepOrder: 1, URL: srv.URL},
			{StepOrder: 2, URL: srv.URL},
		},
	}

	exec := newExecution()
	start := time.Now()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", exec.Status)
	}
	if exec.Reason != "chain timeout exceeded" {
		t.Errorf("unexpected reason: %q", exec.Reason)
	}
	// The in-flight step is interrupted, not waited out
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected prompt interruption, took %s", elapsed)
	}
	// Step 1 was started and gets a record; step 2 was never attempted
	if len(records) != 1 {
		t.Fatalf("expected 1 step record, got %d", len(records))
	}
	if records[0].Status != domain.StepStatusFailed {
		t.Errorf("expected interrupted step FAILED, got %s", records[0].Status)
	}
}

func TestChainRun_SingleCallTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	task := &domain.Task{
		ID:   uuid.New(),
		Name: "ping",
		URL:  srv.URL,
	}
	chain := domain.ChainFromTask(task)

	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, chain)

	if exec.Status != domain.ExecutionStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", exec.Status)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 step record, got %d", len(records))
	}
	if records[0].Name != "ping" {
		t.Errorf("expected step named after the task, got %q", records[0].Name)
	}
}

func TestChainRun_EmptyChain(t *testing.T) {
	exec := newExecution()
	records := newChainExecutor().Run(context.Background(), exec, &domain.TaskChain{})

	if exec.Status != domain.ExecutionStatusSuccess {
		t.Errorf("expected SUCCESS for empty chain, got %s", exec.Status)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

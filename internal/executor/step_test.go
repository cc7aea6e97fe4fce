package executor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
)

func TestStepRun_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"order_id":"ord-42","total":99.5}`))
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{
		StepOrder: 1,
		URL:       srv.URL,
		ExtractVariables: map[string]string{
			"order_id": "order_id",
		},
	}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (err: %v)", out.Status, out.Err)
	}
	if out.StatusCode != 200 {
		t.Errorf("expected status code 200, got %d", out.StatusCode)
	}
	if out.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.Attempts)
	}
	if out.Extracted["order_id"] != "ord-42" {
		t.Errorf("expected extracted order_id=ord-42, got %q", out.Extracted["order_id"])
	}
}

func TestStepRun_Interpolation(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{
		StepOrder: 1,
		URL:       srv.URL + "/orders/{{id}}",
		Method:    "POST",
		Headers:   map[string]string{"Authorization": "Bearer {{token}}"},
		Body:      `{"ref":"{{id}}"}`,
	}
	b := engine.NewBindings(map[string]string{"id": "42", "token": "secret"})

	out := e.Run(context.Background(), step, b)

	if out.Status != domain.StepStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", out.Status)
	}
	if gotMethod != "POST" {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/orders/42" {
		t.Errorf("expected interpolated path, got %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected interpolated header, got %q", gotAuth)
	}
	if gotBody != `{"ref":"42"}` {
		t.Errorf("expected interpolated body, got %q", gotBody)
	}
}

func TestStepRun_UnknownPlaceholderVerbatim(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{StepOrder: 1, URL: srv.URL + "/orders/{{missing}}"}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (err: %v)", out.Status, out.Err)
	}
	// Unbound placeholders pass through untouched
	if gotPath != "/orders/{{missing}}" {
		t.Errorf("expected verbatim placeholder in path, got %q", gotPath)
	}
}

func TestStepRun_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{StepOrder: 1, URL: srv.URL, RetryCount: 2}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusSuccess {
		t.Fatalf("expected SUCCESS after retry, got %s", out.Status)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
}

func TestStepRun_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{StepOrder: 1, URL: srv.URL, RetryCount: 1}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status)
	}
	// retry_count=1 means one retry on top of the first call
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
	if !errors.Is(out.Err, ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", out.Err)
	}
	if out.StatusCode != 500 {
		t.Errorf("expected last status code 500, got %d", out.StatusCode)
	}
}

func TestStepRun_TransportError(t *testing.T) {
	// Server is closed before the call: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{StepOrder: 1, URL: url}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status)
	}
	if out.StatusCode != 0 {
		t.Errorf("expected no status code, got %d", out.StatusCode)
	}
	if out.Err == nil {
		t.Error("expected transport error")
	}
}

func TestStepRun_ConditionReplacesStatusRule(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	// 404 would normally fail, but the condition declares it the
	// expected outcome
	step := &domain.ChainStep{
		StepOrder:  1,
		URL:        srv.URL,
		RetryCount: 3,
		Condition: &domain.StepCondition{
			Operator: domain.OpStatusCodeEquals,
			Value:    404,
		},
	}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", out.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected no retries, got %d calls", got)
	}
}

func TestStepRun_ConditionNotMet(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"pending","job_id":"j-7"}`))
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{
		StepOrder:  1,
		URL:        srv.URL,
		RetryCount: 3,
		Condition: &domain.StepCondition{
			Operator: domain.OpEquals,
			Field:    "status",
			Value:    "done",
		},
		ExtractVariables: map[string]string{"job_id": "job_id"},
	}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	// An unmet condition is SKIPPED, never retried
	if out.Status != domain.StepStatusSkipped {
		t.Fatalf("expected SKIPPED, got %s", out.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
	// Extraction still runs: the condition gates continuation,
	// not observation
	if out.Extracted["job_id"] != "j-7" {
		t.Errorf("expected extraction on skipped step, got %v", out.Extracted)
	}
}

func TestStepRun_InvalidCondition(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{
		StepOrder: 1,
		URL:       srv.URL,
		Condition: &domain.StepCondition{Operator: "looks_like"},
	}

	out := e.Run(context.Background(), step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status)
	}
	if !errors.Is(out.Err, engine.ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", out.Err)
	}
	// Configuration errors fail before any call is made
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no calls, got %d", got)
	}
}

func TestStepRun_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewStepExecutor(nil, nil)
	step := &domain.ChainStep{StepOrder: 1, URL: srv.URL, RetryCount: 5}

	out := e.Run(ctx, step, engine.NewBindings(nil))

	if out.Status != domain.StepStatusFailed {
		t.Fatalf("expected FAILED, got %s", out.Status)
	}
	// A cancelled context stops the retry loop immediately
	if out.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", out.Attempts)
	}
}

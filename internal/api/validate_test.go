package api

import (
	"errors"
	"testing"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
)

func validTaskRequest() *TaskRequest {
	return &TaskRequest{
		Name:     "sync-orders",
		URL:      "https://example.com/sync",
		Method:   "POST",
		CronExpr: "*/5 * * * *",
		Enabled:  true,
	}
}

func TestValidateTask(t *testing.T) {
	if err := ValidateTask(validTaskRequest()); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*TaskRequest)
	}{
		{"empty name", func(r *TaskRequest) { r.Name = " " }},
		{"empty url", func(r *TaskRequest) { r.URL = "" }},
		{"bad method", func(r *TaskRequest) { r.Method = "FETCH" }},
		{"bad overlap policy", func(r *TaskRequest) { r.OverlapPolicy = "MAYBE" }},
		{"negative max_instances", func(r *TaskRequest) { r.MaxInstances = -1 }},
		{"bad cron", func(r *TaskRequest) { r.CronExpr = "every day" }},
		{"bad timezone", func(r *TaskRequest) { r.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTaskRequest()
			tt.mutate(req)
			if err := ValidateTask(req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateTask_ManualOnly(t *testing.T) {
	// A task without cron_expr or run_at is legal: manual runs only
	req := validTaskRequest()
	req.CronExpr = ""
	if err := ValidateTask(req); err != nil {
		t.Errorf("manual-only task rejected: %v", err)
	}
}

func validChain() *domain.TaskChain {
	return &domain.TaskChain{
		Steps: []domain.ChainStep{
			{
				StepOrder: 1,
				URL:       "https://example.com/login",
				Method:    "POST",
				ExtractVariables: map[string]string{
					"token": "token",
				},
			},
			{
				StepOrder: 2,
				URL:       "https://example.com/orders",
				Condition: &domain.StepCondition{
					Operator: domain.OpStatusCodeIn,
					Value:    []any{float64(200), float64(201)},
				},
			},
		},
	}
}

func TestValidateChain(t *testing.T) {
	if err := ValidateChain(validChain()); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
}

func TestValidateChain_Empty(t *testing.T) {
	if err := ValidateChain(&domain.TaskChain{}); err == nil {
		t.Error("empty chain accepted")
	}
}

func TestValidateChain_StepOrder(t *testing.T) {
	chain := validChain()
	chain.Steps[1].StepOrder = 1 // duplicate
	if err := ValidateChain(chain); err == nil {
		t.Error("duplicate step_order accepted")
	}

	chain = validChain()
	chain.Steps[0].StepOrder = 3 // decreasing
	if err := ValidateChain(chain); err == nil {
		t.Error("decreasing step_order accepted")
	}
}

func TestValidateChain_StepURL(t *testing.T) {
	chain := validChain()
	chain.Steps[0].URL = ""
	if err := ValidateChain(chain); err == nil {
		t.Error("step without url accepted")
	}
}

func TestValidateChain_Condition(t *testing.T) {
	// Unknown operator
	chain := validChain()
	chain.Steps[1].Condition = &domain.StepCondition{Operator: "looks_like"}
	err := ValidateChain(chain)
	if !errors.Is(err, engine.ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}

	// Body operator without field
	chain = validChain()
	chain.Steps[1].Condition = &domain.StepCondition{Operator: domain.OpEquals, Value: "done"}
	err = ValidateChain(chain)
	if !errors.Is(err, engine.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}

	// Value of the wrong shape
	chain = validChain()
	chain.Steps[1].Condition = &domain.StepCondition{Operator: domain.OpStatusCodeEquals, Value: "OK"}
	err = ValidateChain(chain)
	if !errors.Is(err, engine.ErrBadConditionValue) {
		t.Errorf("expected ErrBadConditionValue, got %v", err)
	}
}

func TestValidateChain_ExtractRules(t *testing.T) {
	chain := validChain()
	chain.Steps[0].ExtractVariables = map[string]string{"": "data.id"}
	err := ValidateChain(chain)
	if !errors.Is(err, engine.ErrEmptyExtractKey) {
		t.Errorf("expected ErrEmptyExtractKey, got %v", err)
	}
}

package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/conveyor/internal/domain"
)

func TestCompile_Nil(t *testing.T) {
	ev, err := Compile(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Error("nil condition should compile to nil evaluator")
	}
}

func TestCompile_UnknownOperator(t *testing.T) {
	_, err := Compile(&domain.StepCondition{Operator: "looks_like"})
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestCompile_BodyOperatorRequiresField(t *testing.T) {
	bodyOps := []domain.ConditionOperator{
		domain.OpEquals, domain.OpNotEquals,
		domain.OpContains, domain.OpNotContains,
		domain.OpRegex, domain.OpExists, domain.OpNotExists,
	}

	for _, op := range bodyOps {
		t.Run(string(op), func(t *testing.T) {
			_, err := Compile(&domain.StepCondition{Operator: op, Value: "x"})
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("expected ErrMissingField, got %v", err)
			}
		})
	}
}

func TestCompile_ValueShape(t *testing.T) {
	// status_code_equals wants a single integer
	_, err := Compile(&domain.StepCondition{Operator: domain.OpStatusCodeEquals, Value: "not-a-number"})
	if !errors.Is(err, ErrBadConditionValue) {
		t.Errorf("expected ErrBadConditionValue, got %v", err)
	}

	// status_code_in wants an integer list
	_, err = Compile(&domain.StepCondition{Operator: domain.OpStatusCodeIn, Value: 200})
	if !errors.Is(err, ErrBadConditionValue) {
		t.Errorf("expected ErrBadConditionValue, got %v", err)
	}

	// empty list is a configuration error
	_, err = Compile(&domain.StepCondition{Operator: domain.OpStatusCodeIn, Value: []any{}})
	if !errors.Is(err, ErrBadConditionValue) {
		t.Errorf("expected ErrBadConditionValue for empty list, got %v", err)
	}

	// regex must compile
	_, err = Compile(&domain.StepCondition{Operator: domain.OpRegex, Field: "msg", Value: "("})
	if !errors.Is(err, ErrBadPattern) {
		t.Errorf("expected ErrBadPattern, got %v", err)
	}
}

func TestStatusCodeEquals(t *testing.T) {
	ev, err := Compile(&domain.StepCondition{Operator: domain.OpStatusCodeEquals, Value: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Satisfied for every 200 and for no other code
	for code := 100; code < 600; code++ {
		want := code == 200
		if got := ev.Satisfied(code, nil); got != want {
			t.Errorf("code %d: expected %v, got %v", code, want, got)
		}
	}
}

func TestStatusCodeEquals_RoundTrip(t *testing.T) {
	// Serialize/deserialize cycles must not change the decision
	cond := &domain.StepCondition{Operator: domain.OpStatusCodeEquals, Value: 200}

	for i := 0; i < 3; i++ {
		data, err := json.Marshal(cond)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		cond = &domain.StepCondition{}
		if err := json.Unmarshal(data, cond); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		ev, err := Compile(cond)
		if err != nil {
			t.Fatalf("compile after round-trip %d: %v", i, err)
		}
		if !ev.Satisfied(200, nil) {
			t.Errorf("round-trip %d: 200 should satisfy", i)
		}
		if ev.Satisfied(201, nil) {
			t.Errorf("round-trip %d: 201 should not satisfy", i)
		}
	}
}

func TestStatusCodeIn(t *testing.T) {
	ev, err := Compile(&domain.StepCondition{
		Operator: domain.OpStatusCodeIn,
		// JSON numbers arrive as float64
		Value: []any{float64(200), float64(201)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ev.Satisfied(200, nil) || !ev.Satisfied(201, nil) {
		t.Error("200 and 201 should satisfy")
	}
	if ev.Satisfied(404, nil) {
		t.Error("404 should not satisfy")
	}
}

func TestStatusCodeNotIn(t *testing.T) {
	ev, err := Compile(&domain.StepCondition{
		Operator: domain.OpStatusCodeNotIn,
		Value:    []any{float64(500), float64(502)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Satisfied(500, nil) || ev.Satisfied(502, nil) {
		t.Error("listed codes should not satisfy")
	}
	if !ev.Satisfied(200, nil) {
		t.Error("unlisted code should satisfy")
	}
}

func TestBodyOperators(t *testing.T) {
	body := []byte(`{"status":"done","message":"order 42 shipped","data":{"count":3}}`)

	tests := []struct {
		name      string
		cond      domain.StepCondition
		satisfied bool
	}{
		{
			name:      "equals match",
			cond:      domain.StepCondition{Operator: domain.OpEquals, Field: "status", Value: "done"},
			satisfied: true,
		},
		{
			name:      "equals mismatch",
			cond:      domain.StepCondition{Operator: domain.OpEquals, Field: "status", Value: "failed"},
			satisfied: false,
		},
		{
			name:      "equals number vs string",
			cond:      domain.StepCondition{Operator: domain.OpEquals, Field: "data.count", Value: float64(3)},
			satisfied: true,
		},
		{
			name:      "not_equals",
			cond:      domain.StepCondition{Operator: domain.OpNotEquals, Field: "status", Value: "failed"},
			satisfied: true,
		},
		{
			name:      "not_equals on missing field",
			cond:      domain.StepCondition{Operator: domain.OpNotEquals, Field: "missing", Value: "x"},
			satisfied: true,
		},
		{
			name:      "contains",
			cond:      domain.StepCondition{Operator: domain.OpContains, Field: "message", Value: "shipped"},
			satisfied: true,
		},
		{
			name:      "not_contains",
			cond:      domain.StepCondition{Operator: domain.OpNotContains, Field: "message", Value: "cancelled"},
			satisfied: true,
		},
		{
			name:      "regex",
			cond:      domain.StepCondition{Operator: domain.OpRegex, Field: "message", Value: `order \d+`},
			satisfied: true,
		},
		{
			name:      "exists",
			cond:      domain.StepCondition{Operator: domain.OpExists, Field: "data.count"},
			satisfied: true,
		},
		{
			name:      "exists missing",
			cond:      domain.StepCondition{Operator: domain.OpExists, Field: "data.missing"},
			satisfied: false,
		},
		{
			name:      "not_exists",
			cond:      domain.StepCondition{Operator: domain.OpNotExists, Field: "data.missing"},
			satisfied: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Compile(&tt.cond)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := ev.Satisfied(200, body); got != tt.satisfied {
				t.Errorf("expected %v, got %v", tt.satisfied, got)
			}
		})
	}
}

func TestBodyOperators_UnparseableBody(t *testing.T) {
	// Any body predicate over an unparseable body is "not satisfied",
	// including negated operators
	body := []byte("<html>not json</html>")

	ops := []domain.StepCondition{
		{Operator: domain.OpEquals, Field: "status", Value: "done"},
		{Operator: domain.OpNotEquals, Field: "status", Value: "done"},
		{Operator: domain.OpContains, Field: "status", Value: "x"},
		{Operator: domain.OpNotContains, Field: "status", Value: "x"},
		{Operator: domain.OpRegex, Field: "status", Value: ".*"},
		{Operator: domain.OpExists, Field: "status"},
		{Operator: domain.OpNotExists, Field: "status"},
	}

	for _, cond := range ops {
		t.Run(string(cond.Operator), func(t *testing.T) {
			ev, err := Compile(&cond)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Satisfied(200, body) {
				t.Error("unparseable body should never satisfy a body predicate")
			}
		})
	}
}

func TestStatusOperators_IgnoreBody(t *testing.T) {
	ev, err := Compile(&domain.StepCondition{Operator: domain.OpStatusCodeEquals, Value: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Garbage body must not affect status-code operators
	if !ev.Satisfied(200, []byte("garbage")) {
		t.Error("status operator should ignore the body")
	}
}

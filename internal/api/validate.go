package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
	"github.com/shaiso/conveyor/internal/scheduler"
)

// allowedMethods — HTTP-методы, допустимые в шагах и tasks.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	http.MethodHead:   true,
}

// ValidateTask проверяет task на границе сохранения.
// Execution core сохранённым данным доверяет и проверки не повторяет.
func ValidateTask(req *TaskRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if req.Method != "" && !allowedMethods[strings.ToUpper(req.Method)] {
		return fmt.Errorf("unsupported method %q", req.Method)
	}

	switch policy := domain.OverlapPolicy(req.OverlapPolicy); policy {
	case "", domain.OverlapAllow, domain.OverlapSkip, domain.OverlapQueue:
	default:
		return fmt.Errorf("unknown overlap policy %q", req.OverlapPolicy)
	}

	if req.MaxInstances < 0 {
		return fmt.Errorf("max_instances must be non-negative")
	}
	if req.MaxQueueSize < 0 {
		return fmt.Errorf("max_queue_size must be non-negative")
	}

	if req.CronExpr != "" {
		if err := scheduler.ValidateCronExpr(req.CronExpr); err != nil {
			return err
		}
	}
	if req.Timezone != "" {
		if err := validateTimezone(req.Timezone); err != nil {
			return err
		}
	}

	// Task без cron_expr и run_at допустим: запускается только вручную
	return nil
}

// ValidateChain проверяет chain-определение на границе сохранения:
// структуру шагов, conditions (через компиляцию) и extract-правила.
func ValidateChain(chain *domain.TaskChain) error {
	if len(chain.Steps) == 0 {
		return fmt.Errorf("chain must have at least one step")
	}

	prevOrder := 0
	for i := range chain.Steps {
		step := &chain.Steps[i]

		if step.StepOrder <= prevOrder {
			return fmt.Errorf("step %d: step_order must be unique and strictly increasing", step.StepOrder)
		}
		prevOrder = step.StepOrder

		if strings.TrimSpace(step.URL) == "" {
			return fmt.Errorf("step %d: url is required", step.StepOrder)
		}
		if step.Method != "" && !allowedMethods[strings.ToUpper(step.Method)] {
			return fmt.Errorf("step %d: unsupported method %q", step.StepOrder, step.Method)
		}

		// Condition проверяется компиляцией: оператор, field, форма value
		if _, err := engine.Compile(step.Condition); err != nil {
			return fmt.Errorf("step %d: %w", step.StepOrder, err)
		}

		if err := engine.ValidateExtractRules(step.StepOrder, step.ExtractVariables); err != nil {
			return err
		}
	}

	return nil
}

func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q", tz)
	}
	return nil
}

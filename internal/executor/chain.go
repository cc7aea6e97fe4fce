package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
)

// ChainExecutor прогоняет chain последовательно, шаг за шагом.
//
// Binding'и эволюционируют append-only: каждый завершившийся шаг
// добавляет извлечённые переменные поверх снимка предыдущих.
// Упавший шаг binding'и не меняет.
type ChainExecutor struct {
	steps  *StepExecutor
	logger *slog.Logger
}

// NewChainExecutor создаёт ChainExecutor поверх step executor'а.
func NewChainExecutor(steps *StepExecutor, logger *slog.Logger) *ChainExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainExecutor{steps: steps, logger: logger}
}

// Run выполняет chain от имени exec, переводя его через RUNNING
// в терминальный статус. Возвращает записи StepExecution для всех
// начатых шагов; шаги, до которых run не дошёл, записей не получают.
//
// Агрегация статуса run:
//   - SUCCESS — каждый начатый шаг SUCCESS или SKIPPED
//   - PARTIAL — есть и успешные шаги, и толерированные падения
//   - FAILED — остановка на нетолерированном падении, либо все шаги упали
//   - CANCELLED — дедлайн chain или остановка orchestrator'а
func (e *ChainExecutor) Run(ctx context.Context, exec *domain.Execution, chain *domain.TaskChain) []*domain.StepExecution {
	exec.MarkRunning()

	runCtx := ctx
	cancel := func() {}
	if d := chain.Timeout(); d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	bindings := engine.NewBindings(exec.Variables)
	steps := chain.SortedSteps()
	records := make([]*domain.StepExecution, 0, len(steps))

	var succeeded, tolerated int
	var lastFailure string

	for i := range steps {
		step := &steps[i]

		if runCtx.Err() != nil {
			// Дедлайн сработал между шагами: оставшиеся не начинаются.
			exec.MarkCancelled(interruptReason(ctx, runCtx))
			return records
		}

		rec := &domain.StepExecution{
			ID:          uuid.New(),
			ExecutionID: exec.ID,
			StepOrder:   step.StepOrder,
			Name:        step.Name,
			CreatedAt:   time.Now(),
		}
		rec.MarkRunning()

		out := e.steps.Run(runCtx, step, bindings)
		rec.Attempts = out.Attempts
		rec.StatusCode = out.StatusCode
		rec.ResponseBody = string(out.Body)
		rec.Extracted = out.Extracted
		records = append(records, rec)

		if runCtx.Err() != nil && out.Status == domain.StepStatusFailed {
			// Шаг прерван на середине: запись остаётся, run отменяется.
			rec.MarkFailed(fmt.Sprintf("%v: %v", ErrInterrupted, runCtx.Err()))
			exec.MarkCancelled(interruptReason(ctx, runCtx))
			return records
		}

		switch out.Status {
		case domain.StepStatusSuccess:
			rec.MarkSuccess()
			succeeded++
			bindings = bindings.Extend(out.Extracted)

		case domain.StepStatusSkipped:
			rec.MarkSkipped()
			succeeded++
			bindings = bindings.Extend(out.Extracted)
			e.logger.Debug("step condition not met, continuing",
				"execution_id", exec.ID,
				"step_order", step.StepOrder)

		default:
			msg := "step failed"
			if out.Err != nil {
				msg = out.Err.Error()
			}
			rec.MarkFailed(msg)
			lastFailure = fmt.Sprintf("step %d: %s", step.StepOrder, msg)

			// stop_on_failure на уровне chain перебивает
			// continue_on_failure отдельного шага.
			if chain.StopOnFailure || !step.ContinueOnFailure {
				e.logger.Warn("chain stopped on step failure",
					"execution_id", exec.ID,
					"step_order", step.StepOrder,
					"error", msg)
				exec.MarkFailed(lastFailure)
				return records
			}
			tolerated++
			e.logger.Warn("step failed, chain continues",
				"execution_id", exec.ID,
				"step_order", step.StepOrder,
				"error", msg)
		}
	}

	switch {
	case tolerated == 0:
		exec.MarkSuccess()
	case succeeded == 0:
		exec.MarkFailed(lastFailure)
	default:
		exec.MarkPartial(lastFailure)
	}
	return records
}

// interruptReason различает причину прерывания run:
// остановка процесса против дедлайна chain.
func interruptReason(parent, run context.Context) string {
	if parent.Err() != nil {
		return "shutdown requested"
	}
	if errors.Is(run.Err(), context.DeadlineExceeded) {
		return "chain timeout exceeded"
	}
	return "run cancelled"
}

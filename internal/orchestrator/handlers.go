package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/telemetry"
)

// handleRunRequested обрабатывает событие run.requested из MQ.
func (o *Orchestrator) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.requested payload", "error", err)
		return err
	}

	o.logger.Debug("received run.requested event", "execution_id", payload.ExecutionID)

	if o.isActive(payload.ExecutionID) {
		o.logger.Debug("execution already active, skipping", "execution_id", payload.ExecutionID)
		return nil
	}

	if err := o.processExecution(ctx, payload.ExecutionID); err != nil {
		// Гонка с polling, повторная доставка или удалённый execution — не ошибка:
		// requeue здесь означал бы вечный poison message
		if errors.Is(err, ErrExecutionNotPending) || errors.Is(err, ErrExecutionAlreadyActive) ||
			errors.Is(err, ErrExecutionNotFound) {
			o.logger.Debug("execution not processed", "execution_id", payload.ExecutionID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process execution", "execution_id", payload.ExecutionID, "error", err)
		return err
	}

	return nil
}

// processExecution принимает один pending execution: admission-контроль
// и, при положительном решении, запуск run-горутины.
func (o *Orchestrator) processExecution(ctx context.Context, execID uuid.UUID) error {
	// 1. Загружаем execution
	exec, err := o.execRepo.GetByID(ctx, execID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, execID)
		}
		return fmt.Errorf("get execution: %w", err)
	}

	// 2. Проверяем статус
	if exec.Status != domain.ExecutionStatusPending {
		return ErrExecutionNotPending
	}

	// 3. Помечаем как обрабатываемый
	if err := o.markActive(execID); err != nil {
		return err
	}

	// 4. Загружаем task
	task, err := o.taskRepo.GetByID(ctx, exec.TaskID)
	if err != nil {
		o.removeActive(execID)
		if errors.Is(err, repo.ErrNotFound) {
			return o.failExecution(ctx, exec, fmt.Sprintf("task not found: %s", exec.TaskID))
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 5. Admission-контроль
	decision, reason := o.admission.Admit(task, exec.ID)
	telemetry.AdmissionDecisions.WithLabelValues(decision.String(), reason).Inc()

	switch decision {
	case DecisionReject:
		exec.MarkCancelled(reason)
		if err := o.execRepo.Update(ctx, exec); err != nil {
			o.removeActive(execID)
			return fmt.Errorf("update rejected execution: %w", err)
		}
		o.logger.Info("run rejected by admission",
			"execution_id", exec.ID,
			"task_id", task.ID,
			"reason", reason,
		)
		o.publishCompleted(ctx, exec)
		o.removeActive(execID)
		return nil

	case DecisionEnqueue:
		// Execution остаётся PENDING в БД и активным в памяти:
		// polling его не тронет, слот передаст Release
		o.logger.Info("run enqueued",
			"execution_id", exec.ID,
			"task_id", task.ID,
			"queued", o.admission.Queued(task.ID),
		)
		return nil
	}

	// 6. Слот получен — запускаем run
	o.launchRun(task, exec)
	return nil
}

// launchRun запускает горутину выполнения run'а.
// Слот admission уже занят вызывающей стороной.
func (o *Orchestrator) launchRun(task *domain.Task, exec *domain.Execution) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runExecution(o.runCtx, task, exec)
	}()
}

// runExecution выполняет один run до терминального статуса.
func (o *Orchestrator) runExecution(ctx context.Context, task *domain.Task, exec *domain.Execution) {
	defer o.removeActive(exec.ID)
	defer o.releaseSlot(task.ID)

	// Остановка до первого вызова: execution остаётся PENDING,
	// его подхватит polling после рестарта
	if ctx.Err() != nil {
		return
	}

	telemetry.ActiveRuns.Inc()
	defer telemetry.ActiveRuns.Dec()

	logger := telemetry.WithExecutionID(o.logger, exec.ID.String())

	// Загружаем chain; single-call task выполняется вырожденным chain'ом
	chain, err := o.chainRepo.GetByTaskID(ctx, task.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			o.failExecution(ctx, exec, fmt.Sprintf("load chain: %v", err))
			return
		}
		chain = domain.ChainFromTask(task)
	}

	// Фиксируем RUNNING до начала вызовов
	exec.MarkRunning()
	if err := o.execRepo.Update(ctx, exec); err != nil {
		logger.Error("failed to mark execution running", "error", err)
	}

	logger.Info("run started",
		"task_id", task.ID,
		"steps", len(chain.Steps),
	)

	records := o.chains.Run(ctx, exec, chain)

	// Персистентность переживает остановку orchestrator'а:
	// терминальный статус должен попасть в БД даже при отменённом ctx
	saveCtx := context.WithoutCancel(ctx)

	for _, rec := range records {
		telemetry.StepsCompleted.WithLabelValues(string(rec.Status)).Inc()
		if err := o.execRepo.CreateStep(saveCtx, rec); err != nil {
			logger.Error("failed to save step execution",
				"step_order", rec.StepOrder,
				"error", err,
			)
		}
	}

	if err := o.execRepo.Update(saveCtx, exec); err != nil {
		logger.Error("failed to save execution result", "error", err)
	}

	telemetry.ExecutionsCompleted.WithLabelValues(string(exec.Status)).Inc()
	telemetry.ExecutionDuration.Observe(exec.Duration().Seconds())

	logger.Info("run finished",
		"task_id", task.ID,
		"status", exec.Status,
		"steps", len(records),
		"duration", exec.Duration(),
	)

	o.publishCompleted(saveCtx, exec)
}

// releaseSlot освобождает слот task'а и, если очередь непуста,
// немедленно запускает следующий ожидающий run.
func (o *Orchestrator) releaseSlot(taskID uuid.UUID) {
	next, ok := o.admission.Release(taskID)
	if !ok {
		return
	}

	// При остановке очередь дренируется без запуска: ожидавшие runs
	// остаются PENDING в БД до следующего старта orchestrator'а
	if o.runCtx.Err() != nil {
		o.removeActive(next)
		o.releaseSlot(taskID)
		return
	}

	if err := o.startDequeued(taskID, next); err != nil {
		o.logger.Error("failed to start queued run",
			"execution_id", next,
			"task_id", taskID,
			"error", err,
		)
		o.removeActive(next)
		// Слот переходит дальше по очереди
		o.releaseSlot(taskID)
	}
}

// startDequeued запускает run, дождавшийся слота в очереди.
// Admission не вызывается повторно: слот уже принадлежит этому run'у.
func (o *Orchestrator) startDequeued(taskID, execID uuid.UUID) error {
	ctx := o.runCtx

	exec, err := o.execRepo.GetByID(ctx, execID)
	if err != nil {
		return fmt.Errorf("get queued execution: %w", err)
	}
	if exec.Status != domain.ExecutionStatusPending {
		return ErrExecutionNotPending
	}

	task, err := o.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	o.logger.Info("starting queued run",
		"execution_id", execID,
		"task_id", taskID,
	)

	o.launchRun(task, exec)
	return nil
}

// failExecution финализирует execution как FAILED до начала выполнения.
func (o *Orchestrator) failExecution(ctx context.Context, exec *domain.Execution, msg string) error {
	exec.MarkFailed(msg)

	if err := o.execRepo.Update(ctx, exec); err != nil {
		return fmt.Errorf("update execution to failed: %w", err)
	}

	telemetry.ExecutionsCompleted.WithLabelValues(string(exec.Status)).Inc()

	o.logger.Warn("run failed early",
		"execution_id", exec.ID,
		"error", msg,
	)

	o.publishCompleted(ctx, exec)
	return fmt.Errorf("run failed: %s", msg)
}

// publishCompleted публикует execution.completed.
// Отсутствие MQ или ошибка публикации не влияют на результат run'а.
func (o *Orchestrator) publishCompleted(ctx context.Context, exec *domain.Execution) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.PublishExecutionCompleted(ctx, mq.ExecutionCompletedPayload{
		ExecutionID: exec.ID,
		TaskID:      exec.TaskID,
		Status:      string(exec.Status),
		Error:       exec.Error,
		DurationMS:  exec.Duration().Milliseconds(),
	})
	if err != nil {
		o.logger.Warn("failed to publish execution.completed",
			"execution_id", exec.ID,
			"error", err,
		)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/telemetry"

	"log/slog"
)

// Scheduler — планировщик, создающий runs для due tasks.
type Scheduler struct {
	taskRepo  *repo.TaskRepo
	execRepo  *repo.ExecutionRepo
	publisher *mq.Publisher
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	TaskRepo  *repo.TaskRepo
	ExecRepo  *repo.ExecutionRepo
	Publisher *mq.Publisher
	Logger    *slog.Logger
	BatchSize int // количество tasks за один тик (default: 100)
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		taskRepo:  cfg.TaskRepo,
		execRepo:  cfg.ExecRepo,
		publisher: cfg.Publisher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due tasks (enabled=true, next_due_at <= now)
// 2. Для каждого task создаёт pending execution (идемпотентно)
// 3. Обновляет next_due_at / last_run_at
// 4. Публикует run.requested в RabbitMQ
//
// Ошибки одного task не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	tasks, err := s.taskRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil
	}

	s.logger.Debug("found due tasks", "count", len(tasks))

	var processed, created int
	for i := range tasks {
		task := &tasks[i]

		runCreated, err := s.processTask(ctx, task, now)
		if err != nil {
			s.logger.Error("failed to process due task",
				"task_id", task.ID,
				"task_name", task.Name,
				"error", err,
			)
			continue
		}

		processed++
		if runCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(tasks),
		"processed", processed,
		"runs_created", created,
	)

	return nil
}

// processTask создаёт execution для одного due task'а.
// Возвращает true, если execution был создан (не был дубликатом).
func (s *Scheduler) processTask(ctx context.Context, task *domain.Task, now time.Time) (bool, error) {
	// Idempotency key "{task_id}_{due_unix}": один due-момент — один run,
	// сколько бы scheduler'ов ни тикнуло одновременно
	idempKey := fmt.Sprintf("%s_%d", task.ID, task.NextDueAt.Unix())

	exec := &domain.Execution{
		ID:             uuid.New(),
		TaskID:         task.ID,
		WorkspaceID:    task.WorkspaceID,
		Status:         domain.ExecutionStatusPending,
		Variables:      task.InitialVariables,
		IdempotencyKey: idempKey,
		CreatedAt:      now,
	}

	runCreated := true
	if err := s.execRepo.Create(ctx, exec); err != nil {
		if !errors.Is(err, repo.ErrAlreadyExists) {
			return false, fmt.Errorf("create execution: %w", err)
		}
		// Дубликат — другой scheduler уже создал run для этого due-момента
		s.logger.Debug("execution already exists (idempotency)",
			"task_id", task.ID,
			"idempotency_key", idempKey,
		)
		runCreated = false
	}

	if runCreated {
		telemetry.ScheduledRuns.Inc()
		s.logger.Info("created run for due task",
			"execution_id", exec.ID,
			"task_id", task.ID,
			"task_name", task.Name,
		)
	}

	// Следующее due-время; для one-shot tasks — нулевое (больше не due)
	nextDue, err := CalculateNextDue(task, now)
	if err != nil {
		s.logger.Error("failed to calculate next due",
			"task_id", task.ID,
			"error", err,
		)
		// next_due_at не трогаем, чтобы не потерять расписание
		return runCreated, nil
	}

	task.RecordRun(now, nextDue)
	if err := s.taskRepo.UpdateSchedule(ctx, task); err != nil {
		return runCreated, fmt.Errorf("update task schedule: %w", err)
	}

	// Событие для orchestrator'а; при ошибке run подхватит polling
	if s.publisher != nil && runCreated {
		if err := s.publisher.PublishRunRequested(ctx, exec.ID, task.ID); err != nil {
			s.logger.Warn("failed to publish run.requested",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}

	return runCreated, nil
}

package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/conveyor/internal/domain"
)

// maxStoredBody — предел сохраняемого тела ответа шага.
const maxStoredBody = 64 * 1024

// ExecutionRepo — репозиторий executions и step executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `
	id, task_id, workspace_id, status, reason, error, variables,
	idempotency_key, started_at, finished_at, created_at
`

// Create создаёт execution. Конфликт idempotency key возвращает
// ErrAlreadyExists: один due-момент — один run.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.Execution) error {
	varsJSON, err := json.Marshal(exec.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (task_id, idempotency_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.TaskID,
		exec.WorkspaceID,
		exec.Status,
		nullString(exec.Reason),
		nullString(exec.Error),
		varsJSON,
		nullString(exec.IdempotencyKey),
		exec.StartedAt,
		exec.FinishedAt,
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет статус и результат execution.
func (r *ExecutionRepo) Update(ctx context.Context, exec *domain.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, reason = $3, error = $4, started_at = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.Status,
		nullString(exec.Reason),
		nullString(exec.Error),
		exec.StartedAt,
		exec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает executions в статусе PENDING (polling fallback).
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// List возвращает executions с фильтрацией (история).
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE ($1::uuid IS NULL OR task_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.TaskID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// CreateStep сохраняет терминальную запись шага.
// Тело ответа обрезается до maxStoredBody.
func (r *ExecutionRepo) CreateStep(ctx context.Context, step *domain.StepExecution) error {
	extractedJSON, err := json.Marshal(step.Extracted)
	if err != nil {
		return fmt.Errorf("marshal extracted: %w", err)
	}

	responseBody := step.ResponseBody
	if len(responseBody) > maxStoredBody {
		responseBody = responseBody[:maxStoredBody]
	}

	query := `
		INSERT INTO step_executions (
			id, execution_id, step_order, name, status, status_code,
			response_body, extracted, error, attempts,
			started_at, finished_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.pool.Exec(ctx, query,
		step.ID,
		step.ExecutionID,
		step.StepOrder,
		nullString(step.Name),
		step.Status,
		step.StatusCode,
		nullString(responseBody),
		extractedJSON,
		nullString(step.Error),
		step.Attempts,
		step.StartedAt,
		step.FinishedAt,
		step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step execution: %w", err)
	}
	return nil
}

// ListSteps возвращает записи шагов run'а в порядке step_order.
func (r *ExecutionRepo) ListSteps(ctx context.Context, executionID uuid.UUID) ([]domain.StepExecution, error) {
	query := `
		SELECT id, execution_id, step_order, name, status, status_code,
		       response_body, extracted, error, attempts,
		       started_at, finished_at, created_at
		FROM step_executions
		WHERE execution_id = $1
		ORDER BY step_order ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list step executions: %w", err)
	}
	defer rows.Close()

	var steps []domain.StepExecution
	for rows.Next() {
		step, err := scanStepExecution(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// --- Helpers ---

// ExecutionFilter — параметры выборки executions.
type ExecutionFilter struct {
	TaskID *uuid.UUID
	Status domain.ExecutionStatus
	Limit  int
	Offset int
}

func collectExecutions(rows pgx.Rows) ([]domain.Execution, error) {
	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// scanExecution сканирует строку в Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var reason, execError, idempotencyKey *string
	var varsJSON []byte

	err := row.Scan(
		&exec.ID,
		&exec.TaskID,
		&exec.WorkspaceID,
		&exec.Status,
		&reason,
		&execError,
		&varsJSON,
		&idempotencyKey,
		&exec.StartedAt,
		&exec.FinishedAt,
		&exec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &exec.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	if reason != nil {
		exec.Reason = *reason
	}
	if execError != nil {
		exec.Error = *execError
	}
	if idempotencyKey != nil {
		exec.IdempotencyKey = *idempotencyKey
	}

	return &exec, nil
}

// scanStepExecution сканирует строку в StepExecution.
func scanStepExecution(row pgx.Row) (*domain.StepExecution, error) {
	var step domain.StepExecution
	var name, responseBody, stepError *string
	var extractedJSON []byte

	err := row.Scan(
		&step.ID,
		&step.ExecutionID,
		&step.StepOrder,
		&name,
		&step.Status,
		&step.StatusCode,
		&responseBody,
		&extractedJSON,
		&stepError,
		&step.Attempts,
		&step.StartedAt,
		&step.FinishedAt,
		&step.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step execution: %w", err)
	}

	if extractedJSON != nil {
		if err := json.Unmarshal(extractedJSON, &step.Extracted); err != nil {
			return nil, fmt.Errorf("unmarshal extracted: %w", err)
		}
	}

	if name != nil {
		step.Name = *name
	}
	if responseBody != nil {
		step.ResponseBody = *responseBody
	}
	if stepError != nil {
		step.Error = *stepError
	}

	return &step, nil
}

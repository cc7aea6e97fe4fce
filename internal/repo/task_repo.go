package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/conveyor/internal/domain"
)

// TaskRepo — репозиторий tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `
	id, workspace_id, name, url, method, headers, body,
	timeout_sec, retry_count, retry_delay_sec,
	overlap_policy, max_instances, max_queue_size, execution_timeout_sec,
	cron_expr, run_at, timezone, enabled, next_due_at, last_run_at,
	initial_variables, created_at, updated_at
`

// Create создаёт task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	headersJSON, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	varsJSON, err := json.Marshal(task.InitialVariables)
	if err != nil {
		return fmt.Errorf("marshal initial variables: %w", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.WorkspaceID,
		task.Name,
		task.URL,
		nullString(task.Method),
		headersJSON,
		nullString(task.Body),
		task.TimeoutSec,
		task.RetryCount,
		task.RetryDelaySec,
		task.OverlapPolicy,
		task.MaxInstances,
		task.MaxQueueSize,
		task.ExecutionTimeoutSec,
		nullString(task.CronExpr),
		task.RunAt,
		nullString(task.Timezone),
		task.Enabled,
		task.NextDueAt,
		task.LastRunAt,
		varsJSON,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// List возвращает tasks workspace'а.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1::uuid IS NULL OR workspace_id = $1)
		  AND ($2::bool IS NULL OR enabled = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.WorkspaceID),
		filter.Enabled,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ListDue возвращает enabled tasks с next_due_at <= now.
// Используется scheduler'ом.
func (r *TaskRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE enabled = TRUE
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// Update обновляет task целиком.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	headersJSON, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	varsJSON, err := json.Marshal(task.InitialVariables)
	if err != nil {
		return fmt.Errorf("marshal initial variables: %w", err)
	}

	query := `
		UPDATE tasks
		SET name = $2, url = $3, method = $4, headers = $5, body = $6,
		    timeout_sec = $7, retry_count = $8, retry_delay_sec = $9,
		    overlap_policy = $10, max_instances = $11, max_queue_size = $12,
		    execution_timeout_sec = $13, cron_expr = $14, run_at = $15,
		    timezone = $16, enabled = $17, next_due_at = $18, last_run_at = $19,
		    initial_variables = $20, updated_at = $21
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Name,
		task.URL,
		nullString(task.Method),
		headersJSON,
		nullString(task.Body),
		task.TimeoutSec,
		task.RetryCount,
		task.RetryDelaySec,
		task.OverlapPolicy,
		task.MaxInstances,
		task.MaxQueueSize,
		task.ExecutionTimeoutSec,
		nullString(task.CronExpr),
		task.RunAt,
		nullString(task.Timezone),
		task.Enabled,
		task.NextDueAt,
		task.LastRunAt,
		varsJSON,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSchedule обновляет только поля расписания после запуска.
func (r *TaskRepo) UpdateSchedule(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET next_due_at = $2, last_run_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.NextDueAt,
		task.LastRunAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет task.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// TaskFilter — параметры выборки tasks.
type TaskFilter struct {
	WorkspaceID *uuid.UUID
	Enabled     *bool
	Limit       int
	Offset      int
}

// scanTask сканирует строку в Task.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var method, body, cronExpr, timezone *string
	var headersJSON, varsJSON []byte

	err := row.Scan(
		&task.ID,
		&task.WorkspaceID,
		&task.Name,
		&task.URL,
		&method,
		&headersJSON,
		&body,
		&task.TimeoutSec,
		&task.RetryCount,
		&task.RetryDelaySec,
		&task.OverlapPolicy,
		&task.MaxInstances,
		&task.MaxQueueSize,
		&task.ExecutionTimeoutSec,
		&cronExpr,
		&task.RunAt,
		&timezone,
		&task.Enabled,
		&task.NextDueAt,
		&task.LastRunAt,
		&varsJSON,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if headersJSON != nil {
		if err := json.Unmarshal(headersJSON, &task.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &task.InitialVariables); err != nil {
			return nil, fmt.Errorf("unmarshal initial variables: %w", err)
		}
	}

	if method != nil {
		task.Method = *method
	}
	if body != nil {
		task.Body = *body
	}
	if cronExpr != nil {
		task.CronExpr = *cronExpr
	}
	if timezone != nil {
		task.Timezone = *timezone
	}

	return &task, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

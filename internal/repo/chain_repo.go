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

// ChainRepo — репозиторий chain-определений.
// Шаги хранятся единым JSONB-документом: chain читается и пишется целиком.
type ChainRepo struct {
	pool *pgxpool.Pool
}

// NewChainRepo создаёт ChainRepo.
func NewChainRepo(pool *pgxpool.Pool) *ChainRepo {
	return &ChainRepo{pool: pool}
}

// Save сохраняет chain task'а (insert или полная замена).
func (r *ChainRepo) Save(ctx context.Context, chain *domain.TaskChain) error {
	stepsJSON, err := json.Marshal(chain.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO task_chains (task_id, stop_on_failure, timeout_sec, steps)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id) DO UPDATE
		SET stop_on_failure = EXCLUDED.stop_on_failure,
		    timeout_sec = EXCLUDED.timeout_sec,
		    steps = EXCLUDED.steps
	`
	_, err = r.pool.Exec(ctx, query,
		chain.TaskID,
		chain.StopOnFailure,
		chain.TimeoutSec,
		stepsJSON,
	)
	if err != nil {
		return fmt.Errorf("save chain: %w", err)
	}
	return nil
}

// GetByTaskID возвращает chain task'а.
// ErrNotFound означает single-call task без chain-определения.
func (r *ChainRepo) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.TaskChain, error) {
	query := `
		SELECT task_id, stop_on_failure, timeout_sec, steps
		FROM task_chains
		WHERE task_id = $1
	`

	var chain domain.TaskChain
	var stepsJSON []byte

	err := r.pool.QueryRow(ctx, query, taskID).Scan(
		&chain.TaskID,
		&chain.StopOnFailure,
		&chain.TimeoutSec,
		&stepsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chain: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &chain.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}

	return &chain, nil
}

// Delete удаляет chain task'а.
func (r *ChainRepo) Delete(ctx context.Context, taskID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM task_chains WHERE task_id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("delete chain: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package orchestrator

import "errors"

var (
	// ErrExecutionNotFound — execution не найден в БД.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionNotPending — execution уже не в статусе PENDING.
	ErrExecutionNotPending = errors.New("execution not pending")

	// ErrExecutionAlreadyActive — execution уже обрабатывается
	// этим процессом.
	ErrExecutionAlreadyActive = errors.New("execution already active")

	// ErrTaskNotFound — task execution'а не найден.
	ErrTaskNotFound = errors.New("task not found")
)

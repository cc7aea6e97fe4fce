package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — запись об одном run task'а или chain'а.
//
// Создаётся когда:
// - Scheduler находит due task
// - Пользователь запускает task вручную (через API/CLI)
//
// Терминальная запись неизменяема: после финального статуса
// execution только читается (история, нотификации).
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// TaskID — ссылка на task.
	TaskID uuid.UUID `json:"task_id"`

	// WorkspaceID — workspace task'а (копия для выборок по истории).
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Reason — человекочитаемая причина CANCELLED
	// ("overlap policy: skip", "queue full", "chain timeout exceeded").
	Reason string `json:"reason,omitempty"`

	// Error — текст ошибки при FAILED.
	Error string `json:"error,omitempty"`

	// Variables — стартовые binding'и run'а (initial_variables на момент
	// запуска; извлечённые переменные живут в StepExecution.Extracted).
	Variables map[string]string `json:"variables,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled runs: "{task_id}_{due_at_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения. Nil, если run ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания execution.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution завершён (в любом статусе).
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в статус RUNNING.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkSuccess переводит execution в статус SUCCESS.
func (e *Execution) MarkSuccess() {
	now := time.Now()
	e.Status = ExecutionStatusSuccess
	e.FinishedAt = &now
}

// MarkFailed переводит execution в статус FAILED с ошибкой.
func (e *Execution) MarkFailed(err string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.FinishedAt = &now
	e.Error = err
}

// MarkPartial переводит execution в статус PARTIAL.
func (e *Execution) MarkPartial(err string) {
	now := time.Now()
	e.Status = ExecutionStatusPartial
	e.FinishedAt = &now
	e.Error = err
}

// MarkCancelled переводит execution в статус CANCELLED с причиной.
func (e *Execution) MarkCancelled(reason string) {
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.FinishedAt = &now
	e.Reason = reason
}

// StepExecution — запись о выполнении одного шага внутри run.
//
// Пишется один раз при достижении шагом терминального статуса.
// Для шагов, не начатых из-за дедлайна chain, записи нет вовсе.
type StepExecution struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExecutionID — ссылка на родительский execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// StepOrder — позиция шага в chain.
	StepOrder int `json:"step_order"`

	// Name — имя шага (копия ChainStep.Name).
	Name string `json:"name,omitempty"`

	// Status — статус выполнения шага.
	Status StepStatus `json:"status"`

	// StatusCode — HTTP-код ответа. 0 при transport-ошибке.
	StatusCode int `json:"status_code,omitempty"`

	// ResponseBody — тело ответа (обрезается репозиторием при сохранении).
	ResponseBody string `json:"response_body,omitempty"`

	// Extracted — binding'и, извлечённые из ответа этого шага.
	Extracted map[string]string `json:"extracted,omitempty"`

	// Error — текст последней ошибки при FAILED.
	Error string `json:"error,omitempty"`

	// Attempts — сколько попыток было сделано (включая первую).
	Attempts int `json:"attempts"`

	// StartedAt — время начала выполнения шага.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения шага.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения шага.
func (s *StepExecution) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// MarkRunning переводит шаг в статус RUNNING.
func (s *StepExecution) MarkRunning() {
	now := time.Now()
	s.Status = StepStatusRunning
	s.StartedAt = &now
}

// MarkSuccess переводит шаг в статус SUCCESS.
func (s *StepExecution) MarkSuccess() {
	now := time.Now()
	s.Status = StepStatusSuccess
	s.FinishedAt = &now
}

// MarkFailed переводит шаг в статус FAILED с ошибкой.
func (s *StepExecution) MarkFailed(err string) {
	now := time.Now()
	s.Status = StepStatusFailed
	s.FinishedAt = &now
	s.Error = err
}

// MarkSkipped переводит шаг в статус SKIPPED (condition не выполнен).
func (s *StepExecution) MarkSkipped() {
	now := time.Now()
	s.Status = StepStatusSkipped
	s.FinishedAt = &now
}

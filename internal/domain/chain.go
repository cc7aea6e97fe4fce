package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskChain — специализация Task: упорядоченная последовательность
// HTTP-вызовов вместо одного.
//
// Инвариант: step_order шагов уникальны и строго возрастают;
// порядок выполнения — по возрастанию step_order. Контроль инварианта —
// на границе сохранения (api), здесь — только сортировка.
type TaskChain struct {
	// TaskID — ссылка на task-владельца (настройки расписания,
	// overlap policy и initial variables живут там).
	TaskID uuid.UUID `json:"task_id"`

	// StopOnFailure — остановить chain на первой упавшей step,
	// даже если у неё continue_on_failure.
	StopOnFailure bool `json:"stop_on_failure"`

	// TimeoutSec — общий дедлайн chain в секундах. 0 — без дедлайна.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// Steps — шаги chain.
	Steps []ChainStep `json:"steps"`
}

// SortedSteps возвращает шаги в порядке возрастания StepOrder.
func (c *TaskChain) SortedSteps() []ChainStep {
	steps := make([]ChainStep, len(c.Steps))
	copy(steps, c.Steps)
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})
	return steps
}

// Timeout возвращает общий дедлайн chain. 0 — без дедлайна.
func (c *TaskChain) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// ChainFromTask строит вырожденный одношаговый chain из single-call task.
// Orchestrator выполняет все runs единым chain-механизмом.
func ChainFromTask(t *Task) *TaskChain {
	return &TaskChain{
		TaskID:        t.ID,
		StopOnFailure: true,
		TimeoutSec:    t.ExecutionTimeoutSec,
		Steps: []ChainStep{
			{
				StepOrder:     1,
				Name:          t.Name,
				URL:           t.URL,
				Method:        t.Method,
				Headers:       t.Headers,
				Body:          t.Body,
				TimeoutSec:    t.TimeoutSec,
				RetryCount:    t.RetryCount,
				RetryDelaySec: t.RetryDelaySec,
			},
		},
	}
}

// ChainStep — один HTTP-вызов внутри chain.
type ChainStep struct {
	// StepOrder — позиция шага. Уникальна в рамках chain.
	StepOrder int `json:"step_order"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name,omitempty"`

	// URL — шаблон URL. Может содержать {{var}} плейсхолдеры.
	URL string `json:"url"`

	// Method — HTTP-метод. Default: GET.
	Method string `json:"method,omitempty"`

	// Headers — HTTP-заголовки. Значения интерполируются.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса. Интерполируется.
	Body string `json:"body,omitempty"`

	// TimeoutSec — таймаут вызова в секундах. Default: 30.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// RetryCount — количество повторных попыток (сверх первой).
	RetryCount int `json:"retry_count,omitempty"`

	// RetryDelaySec — задержка между попытками в секундах.
	RetryDelaySec int `json:"retry_delay_sec,omitempty"`

	// ContinueOnFailure — упавший шаг не прерывает chain
	// (binding'и остаются как до шага, run может стать PARTIAL).
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`

	// Condition — условие продолжения chain. Ворота продолжения,
	// не переопределение success/failure.
	Condition *StepCondition `json:"condition,omitempty"`

	// ExtractVariables — маппинг {новое имя → path-выражение по телу ответа}.
	// Извлечённые значения видны следующим шагам.
	ExtractVariables map[string]string `json:"extract_variables,omitempty"`
}

// CallTimeout возвращает таймаут вызова шага с учётом default.
func (s *ChainStep) CallTimeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutSec) * time.Second
}

// RetryDelay возвращает задержку между попытками.
func (s *ChainStep) RetryDelay() time.Duration {
	if s.RetryDelaySec <= 0 {
		return time.Second
	}
	return time.Duration(s.RetryDelaySec) * time.Second
}

// ConditionOperator — оператор StepCondition.
type ConditionOperator string

// Операторы по статус-коду: оценивают только код ответа, Field игнорируется.
const (
	OpStatusCodeEquals ConditionOperator = "status_code_equals"
	OpStatusCodeIn     ConditionOperator = "status_code_in"
	OpStatusCodeNotIn  ConditionOperator = "status_code_not_in"
)

// Операторы по телу ответа: оценивают Field (path в распарсенное тело).
// exists/not_exists игнорируют Value.
const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpRegex       ConditionOperator = "regex"
	OpExists      ConditionOperator = "exists"
	OpNotExists   ConditionOperator = "not_exists"
)

// IsStatusOperator возвращает true для операторов по статус-коду.
func (op ConditionOperator) IsStatusOperator() bool {
	switch op {
	case OpStatusCodeEquals, OpStatusCodeIn, OpStatusCodeNotIn:
		return true
	default:
		return false
	}
}

// IsBodyOperator возвращает true для операторов по телу ответа.
func (op ConditionOperator) IsBodyOperator() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpRegex, OpExists, OpNotExists:
		return true
	default:
		return false
	}
}

// IsKnown возвращает true, если оператор — один из десяти допустимых.
func (op ConditionOperator) IsKnown() bool {
	return op.IsStatusOperator() || op.IsBodyOperator()
}

// StepCondition — предикат над исходом HTTP-вызова шага.
//
// Инвариант: body-оператор без непустого Field — ошибка конфигурации,
// отлавливается на границе сохранения (api.ValidateCondition).
// Форма Value зависит от семейства оператора: один int
// (status_code_equals), список int (status_code_in / _not_in)
// или строковое значение (body-операторы); из JSON числа приходят
// как float64 — компиляция в engine это учитывает.
type StepCondition struct {
	// Operator — один из десяти именованных операторов.
	Operator ConditionOperator `json:"operator"`

	// Field — path в распарсенное тело ответа (только body-операторы).
	Field string `json:"field,omitempty"`

	// Value — значение для сравнения. Игнорируется exists/not_exists.
	Value any `json:"value,omitempty"`
}

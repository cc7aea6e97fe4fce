package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task — периодическая или отложенная единица работы: один HTTP-вызов
// (или chain вызовов, см. TaskChain) по расписанию.
//
// Task создаётся и редактируется пользователем через API;
// execution core читает его и никогда не изменяет.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// WorkspaceID — ссылка на workspace-владельца.
	WorkspaceID uuid.UUID `json:"workspace_id"`

	// Name — имя task для удобной идентификации (например, "sync-orders").
	Name string `json:"name"`

	// URL — шаблон URL вызова. Может содержать {{var}} плейсхолдеры.
	URL string `json:"url"`

	// Method — HTTP-метод (GET, POST, PUT, DELETE). Default: GET.
	Method string `json:"method,omitempty"`

	// Headers — HTTP-заголовки. Значения интерполируются.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса. Интерполируется.
	Body string `json:"body,omitempty"`

	// TimeoutSec — таймаут одного HTTP-вызова в секундах. Default: 30.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// RetryCount — количество повторных попыток вызова (сверх первой).
	RetryCount int `json:"retry_count,omitempty"`

	// RetryDelaySec — задержка между попытками в секундах.
	RetryDelaySec int `json:"retry_delay_sec,omitempty"`

	// OverlapPolicy — политика пересечения одновременных runs: ALLOW, SKIP, QUEUE.
	OverlapPolicy OverlapPolicy `json:"overlap_policy"`

	// MaxInstances — лимит одновременно выполняющихся runs
	// (учитывается при SKIP и QUEUE). Default: 1.
	MaxInstances int `json:"max_instances,omitempty"`

	// MaxQueueSize — лимит ожидающих runs в очереди (только при QUEUE).
	MaxQueueSize int `json:"max_queue_size,omitempty"`

	// ExecutionTimeoutSec — жёсткий wall-clock лимит на весь run,
	// независимый от таймаута отдельного вызова. 0 — без лимита.
	ExecutionTimeoutSec int `json:"execution_timeout_sec,omitempty"`

	// CronExpr — cron-выражение для периодического запуска.
	// Формат: "минуты часы дни месяцы дни_недели".
	// Если задан CronExpr, RunAt игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// RunAt — время одноразового отложенного запуска.
	// Используется если CronExpr не задан.
	RunAt *time.Time `json:"run_at,omitempty"`

	// Timezone — часовой пояс для вычисления времени запуска. Default: "UTC".
	Timezone string `json:"timezone,omitempty"`

	// Enabled — флаг активности. Неактивные tasks не запускаются по расписанию.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	// Scheduler создаёт run, когда now >= NextDueAt.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// InitialVariables — стартовые binding'и run'а.
	// Доступны для интерполяции с первого шага.
	InitialVariables map[string]string `json:"initial_variables,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если task запускается по cron-выражению.
func (t *Task) IsCron() bool {
	return t.CronExpr != ""
}

// IsDelayed возвращает true, если task — одноразовый отложенный запуск.
func (t *Task) IsDelayed() bool {
	return t.CronExpr == "" && t.RunAt != nil
}

// IsDue проверяет, пора ли запускать.
func (t *Task) IsDue(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.NextDueAt == nil {
		return false
	}
	return now.After(*t.NextDueAt) || now.Equal(*t.NextDueAt)
}

// CallTimeout возвращает таймаут одного вызова с учётом default.
func (t *Task) CallTimeout() time.Duration {
	if t.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.TimeoutSec) * time.Second
}

// ExecutionTimeout возвращает общий лимит run'а. 0 — без лимита.
func (t *Task) ExecutionTimeout() time.Duration {
	if t.ExecutionTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(t.ExecutionTimeoutSec) * time.Second
}

// EffectiveMaxInstances возвращает лимит слотов с учётом default (1).
func (t *Task) EffectiveMaxInstances() int {
	if t.MaxInstances <= 0 {
		return 1
	}
	return t.MaxInstances
}

// RecordRun записывает информацию о запуске и следующем due-времени.
// Для отложенных (one-shot) tasks nextDue передаётся нулевым —
// task после запуска больше не due.
func (t *Task) RecordRun(now, nextDue time.Time) {
	t.LastRunAt = &now
	if nextDue.IsZero() {
		t.NextDueAt = nil
	} else {
		t.NextDueAt = &nextDue
	}
	t.UpdatedAt = now
}

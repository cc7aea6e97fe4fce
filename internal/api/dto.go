package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
)

// TaskRequest — тело запроса создания/обновления task.
type TaskRequest struct {
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`

	TimeoutSec    int `json:"timeout_sec,omitempty"`
	RetryCount    int `json:"retry_count,omitempty"`
	RetryDelaySec int `json:"retry_delay_sec,omitempty"`

	OverlapPolicy       string `json:"overlap_policy,omitempty"`
	MaxInstances        int    `json:"max_instances,omitempty"`
	MaxQueueSize        int    `json:"max_queue_size,omitempty"`
	ExecutionTimeoutSec int    `json:"execution_timeout_sec,omitempty"`

	CronExpr string     `json:"cron_expr,omitempty"`
	RunAt    *time.Time `json:"run_at,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
	Enabled  bool       `json:"enabled"`

	InitialVariables map[string]string `json:"initial_variables,omitempty"`
}

// ToDomain строит новый Task из запроса.
func (r *TaskRequest) ToDomain() *domain.Task {
	now := time.Now()
	return &domain.Task{
		ID:                  uuid.New(),
		WorkspaceID:         r.WorkspaceID,
		Name:                r.Name,
		URL:                 r.URL,
		Method:              r.Method,
		Headers:             r.Headers,
		Body:                r.Body,
		TimeoutSec:          r.TimeoutSec,
		RetryCount:          r.RetryCount,
		RetryDelaySec:       r.RetryDelaySec,
		OverlapPolicy:       domain.ParseOverlapPolicy(r.OverlapPolicy),
		MaxInstances:        r.MaxInstances,
		MaxQueueSize:        r.MaxQueueSize,
		ExecutionTimeoutSec: r.ExecutionTimeoutSec,
		CronExpr:            r.CronExpr,
		RunAt:               r.RunAt,
		Timezone:            r.Timezone,
		Enabled:             r.Enabled,
		InitialVariables:    r.InitialVariables,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Apply переносит поля запроса в существующий Task.
func (r *TaskRequest) Apply(task *domain.Task) {
	task.Name = r.Name
	task.URL = r.URL
	task.Method = r.Method
	task.Headers = r.Headers
	task.Body = r.Body
	task.TimeoutSec = r.TimeoutSec
	task.RetryCount = r.RetryCount
	task.RetryDelaySec = r.RetryDelaySec
	task.OverlapPolicy = domain.ParseOverlapPolicy(r.OverlapPolicy)
	task.MaxInstances = r.MaxInstances
	task.MaxQueueSize = r.MaxQueueSize
	task.ExecutionTimeoutSec = r.ExecutionTimeoutSec
	task.CronExpr = r.CronExpr
	task.RunAt = r.RunAt
	task.Timezone = r.Timezone
	task.Enabled = r.Enabled
	task.InitialVariables = r.InitialVariables
	task.UpdatedAt = time.Now()
}

// ChainRequest — тело запроса сохранения chain.
type ChainRequest struct {
	StopOnFailure bool               `json:"stop_on_failure"`
	TimeoutSec    int                `json:"timeout_sec,omitempty"`
	Steps         []domain.ChainStep `json:"steps"`
}

// ToDomain строит TaskChain для task'а.
func (r *ChainRequest) ToDomain(taskID uuid.UUID) *domain.TaskChain {
	return &domain.TaskChain{
		TaskID:        taskID,
		StopOnFailure: r.StopOnFailure,
		TimeoutSec:    r.TimeoutSec,
		Steps:         r.Steps,
	}
}

// EnabledRequest — тело запроса включения/выключения task.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// RunTaskRequest — тело запроса ручного запуска.
type RunTaskRequest struct {
	// Variables перекрывают initial_variables task'а для этого run'а.
	Variables map[string]string `json:"variables,omitempty"`
}

// ExecutionWithSteps — execution вместе с записями шагов.
type ExecutionWithSteps struct {
	domain.Execution
	Steps []domain.StepExecution `json:"steps,omitempty"`
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — task из API.
type TaskResponse struct {
	ID                  string            `json:"id"`
	WorkspaceID         string            `json:"workspace_id"`
	Name                string            `json:"name"`
	URL                 string            `json:"url"`
	Method              string            `json:"method,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`
	Body                string            `json:"body,omitempty"`
	TimeoutSec          int               `json:"timeout_sec,omitempty"`
	RetryCount          int               `json:"retry_count,omitempty"`
	RetryDelaySec       int               `json:"retry_delay_sec,omitempty"`
	OverlapPolicy       string            `json:"overlap_policy"`
	MaxInstances        int               `json:"max_instances,omitempty"`
	MaxQueueSize        int               `json:"max_queue_size,omitempty"`
	ExecutionTimeoutSec int               `json:"execution_timeout_sec,omitempty"`
	CronExpr            string            `json:"cron_expr,omitempty"`
	RunAt               string            `json:"run_at,omitempty"`
	Timezone            string            `json:"timezone,omitempty"`
	Enabled             bool              `json:"enabled"`
	NextDueAt           string            `json:"next_due_at,omitempty"`
	LastRunAt           string            `json:"last_run_at,omitempty"`
	InitialVariables    map[string]string `json:"initial_variables,omitempty"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
}

// ChainResponse — chain-определение из API.
type ChainResponse struct {
	TaskID        string           `json:"task_id"`
	StopOnFailure bool             `json:"stop_on_failure"`
	TimeoutSec    int              `json:"timeout_sec,omitempty"`
	Steps         []map[string]any `json:"steps"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID          string                  `json:"id"`
	TaskID      string                  `json:"task_id"`
	WorkspaceID string                  `json:"workspace_id"`
	Status      string                  `json:"status"`
	Reason      string                  `json:"reason,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Variables   map[string]string       `json:"variables,omitempty"`
	StartedAt   string                  `json:"started_at,omitempty"`
	FinishedAt  string                  `json:"finished_at,omitempty"`
	CreatedAt   string                  `json:"created_at"`
	Steps       []StepExecutionResponse `json:"steps,omitempty"`
}

// StepExecutionResponse — запись шага из API.
type StepExecutionResponse struct {
	ID           string            `json:"id"`
	ExecutionID  string            `json:"execution_id"`
	StepOrder    int               `json:"step_order"`
	Name         string            `json:"name,omitempty"`
	Status       string            `json:"status"`
	StatusCode   int               `json:"status_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
	Extracted    map[string]string `json:"extracted,omitempty"`
	Error        string            `json:"error,omitempty"`
	Attempts     int               `json:"attempts"`
	StartedAt    string            `json:"started_at,omitempty"`
	FinishedAt   string            `json:"finished_at,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

// --- Request types ---

// CreateTaskRequest — создание/обновление task.
type CreateTaskRequest struct {
	Name             string            `json:"name"`
	URL              string            `json:"url"`
	Method           string            `json:"method,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             string            `json:"body,omitempty"`
	TimeoutSec       int               `json:"timeout_sec,omitempty"`
	RetryCount       int               `json:"retry_count,omitempty"`
	OverlapPolicy    string            `json:"overlap_policy,omitempty"`
	MaxInstances     int               `json:"max_instances,omitempty"`
	MaxQueueSize     int               `json:"max_queue_size,omitempty"`
	CronExpr         string            `json:"cron_expr,omitempty"`
	Timezone         string            `json:"timezone,omitempty"`
	Enabled          bool              `json:"enabled"`
	InitialVariables map[string]string `json:"initial_variables,omitempty"`
}

// RunTaskRequest — ручной запуск task'а.
type RunTaskRequest struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// ListTasksOpts — параметры фильтрации tasks.
type ListTasksOpts struct {
	WorkspaceID string
	Enabled     string
	Limit       int
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	TaskID string
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Tasks ---

// ListTasks возвращает список tasks с фильтрацией.
func (c *Client) ListTasks(opts ListTasksOpts) ([]TaskResponse, error) {
	params := url.Values{}
	if opts.WorkspaceID != "" {
		params.Set("workspace_id", opts.WorkspaceID)
	}
	if opts.Enabled != "" {
		params.Set("enabled", opts.Enabled)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask создаёт новый task.
func (c *Client) CreateTask(req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks", req, &task)
	return &task, err
}

// GetTask возвращает task по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// DeleteTask удаляет task.
func (c *Client) DeleteTask(id string) error {
	return c.delete("/api/v1/tasks/" + id)
}

// EnableTask включает task.
func (c *Client) EnableTask(id string) (*TaskResponse, error) {
	return c.setEnabled(id, true)
}

// DisableTask выключает task.
func (c *Client) DisableTask(id string) (*TaskResponse, error) {
	return c.setEnabled(id, false)
}

func (c *Client) setEnabled(id string, enabled bool) (*TaskResponse, error) {
	var task TaskResponse
	body := map[string]bool{"enabled": enabled}
	err := c.put("/api/v1/tasks/"+id+"/enabled", body, &task)
	return &task, err
}

// RunTask запускает task вручную.
func (c *Client) RunTask(id string, req RunTaskRequest) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/tasks/"+id+"/run", req, &exec)
	return &exec, err
}

// --- Chains ---

// GetChain возвращает chain-определение task'а.
func (c *Client) GetChain(taskID string) (*ChainResponse, error) {
	var chain ChainResponse
	err := c.get("/api/v1/tasks/"+taskID+"/chain", &chain)
	return &chain, err
}

// SaveChain сохраняет chain-определение task'а.
func (c *Client) SaveChain(taskID string, spec json.RawMessage) (*ChainResponse, error) {
	var chain ChainResponse
	err := c.doData(http.MethodPut, "/api/v1/tasks/"+taskID+"/chain", spec, &chain)
	return &chain, err
}

// DeleteChain удаляет chain: task снова single-call.
func (c *Client) DeleteChain(taskID string) error {
	return c.delete("/api/v1/tasks/" + taskID + "/chain")
}

// --- Executions ---

// ListExecutions возвращает историю runs с фильтрацией.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionResponse, error) {
	params := url.Values{}
	if opts.TaskID != "" {
		params.Set("task_id", opts.TaskID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var execs []ExecutionResponse
	err := c.list("/api/v1/executions", params, &execs)
	return execs, err
}

// GetExecution возвращает execution вместе с записями шагов.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// ListExecutionSteps возвращает записи шагов run'а.
func (c *Client) ListExecutionSteps(id string) ([]StepExecutionResponse, error) {
	var steps []StepExecutionResponse
	err := c.list("/api/v1/executions/"+id+"/steps", nil, &steps)
	return steps, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}

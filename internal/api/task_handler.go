package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/repo"
	"github.com/shaiso/conveyor/internal/scheduler"
)

// ListTasks возвращает tasks с фильтрацией.
// GET /api/v1/tasks?workspace_id=&enabled=&limit=&offset=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := repo.TaskFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if ws := r.URL.Query().Get("workspace_id"); ws != "" {
		id, err := uuid.Parse(ws)
		if err != nil {
			BadRequest(w, "invalid workspace_id")
			return
		}
		filter.WorkspaceID = &id
	}
	if enabled := r.URL.Query().Get("enabled"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			BadRequest(w, "invalid enabled")
			return
		}
		filter.Enabled = &v
	}

	tasks, err := h.taskRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "tasks not found") {
		return
	}

	List(w, tasks, len(tasks))
}

// CreateTask создаёт task.
// POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json: "+err.Error())
		return
	}

	if err := ValidateTask(&req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	task := req.ToDomain()
	h.scheduleTask(task)

	if err := h.taskRepo.Create(r.Context(), task); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("task created", "task_id", task.ID, "name", task.Name)
	Created(w, task)
}

// GetTask возвращает task по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, task)
}

// UpdateTask обновляет task.
// PUT /api/v1/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json: "+err.Error())
		return
	}

	if err := ValidateTask(&req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	req.Apply(task)
	h.scheduleTask(task)

	if err := h.taskRepo.Update(r.Context(), task); HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, task)
}

// DeleteTask удаляет task вместе с chain-определением.
// DELETE /api/v1/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.chainRepo.Delete(r.Context(), id); err != nil && !errors.Is(err, repo.ErrNotFound) {
		InternalError(w, h.logger, err)
		return
	}

	if err := h.taskRepo.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	NoContent(w)
}

// SetTaskEnabled включает/выключает task.
// PUT /api/v1/tasks/{id}/enabled
func (h *Handler) SetTaskEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req EnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json: "+err.Error())
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	task.Enabled = req.Enabled
	if req.Enabled {
		h.scheduleTask(task)
	}
	task.UpdatedAt = time.Now()

	if err := h.taskRepo.Update(r.Context(), task); HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, task)
}

// RunTask запускает task вручную, минуя расписание.
// POST /api/v1/tasks/{id}/run
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RunTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid json: "+err.Error())
			return
		}
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	exec := &domain.Execution{
		ID:          uuid.New(),
		TaskID:      task.ID,
		WorkspaceID: task.WorkspaceID,
		Status:      domain.ExecutionStatusPending,
		Variables:   mergeVariables(task.InitialVariables, req.Variables),
		CreatedAt:   time.Now(),
	}

	if err := h.execRepo.Create(r.Context(), exec); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Событие для orchestrator'а; при недоступном MQ run подхватит polling
	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(r.Context(), exec.ID, task.ID); err != nil {
			h.logger.Warn("failed to publish run.requested",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}

	h.logger.Info("manual run requested", "execution_id", exec.ID, "task_id", task.ID)
	Created(w, exec)
}

// SaveChain сохраняет chain-определение task'а.
// PUT /api/v1/tasks/{id}/chain
func (h *Handler) SaveChain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.taskRepo.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	var req ChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid json: "+err.Error())
		return
	}

	chain := req.ToDomain(id)
	if err := ValidateChain(chain); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.chainRepo.Save(r.Context(), chain); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, chain)
}

// GetChain возвращает chain-определение task'а.
// GET /api/v1/tasks/{id}/chain
func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	chain, err := h.chainRepo.GetByTaskID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "chain not found") {
		return
	}

	Success(w, chain)
}

// DeleteChain удаляет chain: task снова single-call.
// DELETE /api/v1/tasks/{id}/chain
func (h *Handler) DeleteChain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.chainRepo.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "chain not found") {
		return
	}

	NoContent(w)
}

// scheduleTask вычисляет next_due_at для enabled task'а с расписанием.
func (h *Handler) scheduleTask(task *domain.Task) {
	if !task.Enabled || (!task.IsCron() && !task.IsDelayed()) {
		task.NextDueAt = nil
		return
	}

	next, err := scheduler.CalculateInitialNextDue(task, time.Now())
	if err != nil || next.IsZero() {
		task.NextDueAt = nil
		return
	}
	task.NextDueAt = &next
}

// --- Helpers ---

// pathUUID извлекает UUID из path-параметра.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt извлекает целочисленный query-параметр с default'ом.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// mergeVariables накладывает overrides поверх базовых переменных.
func mergeVariables(base, overrides map[string]string) map[string]string {
	if len(base) == 0 && len(overrides) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/repo"
)

// ListExecutions возвращает историю runs с фильтрацией.
// GET /api/v1/executions?task_id=&status=&limit=&offset=
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if taskID := r.URL.Query().Get("task_id"); taskID != "" {
		id, err := uuid.Parse(taskID)
		if err != nil {
			BadRequest(w, "invalid task_id")
			return
		}
		filter.TaskID = &id
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}

	execs, err := h.execRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "executions not found") {
		return
	}

	List(w, execs, len(execs))
}

// GetExecution возвращает execution вместе с записями шагов.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	exec, err := h.execRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	steps, err := h.execRepo.ListSteps(r.Context(), id)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ExecutionWithSteps{Execution: *exec, Steps: steps})
}

// ListExecutionSteps возвращает записи шагов run'а.
// GET /api/v1/executions/{id}/steps
func (h *Handler) ListExecutionSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	steps, err := h.execRepo.ListSteps(r.Context(), id)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	List(w, steps, len(steps))
}

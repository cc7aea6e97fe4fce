package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.CreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("PUT /api/v1/tasks/{id}", chain(http.HandlerFunc(h.UpdateTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", chain(http.HandlerFunc(h.DeleteTask)))
	mux.Handle("PUT /api/v1/tasks/{id}/enabled", chain(http.HandlerFunc(h.SetTaskEnabled)))
	mux.Handle("POST /api/v1/tasks/{id}/run", chain(http.HandlerFunc(h.RunTask)))

	// Chains
	mux.Handle("GET /api/v1/tasks/{id}/chain", chain(http.HandlerFunc(h.GetChain)))
	mux.Handle("PUT /api/v1/tasks/{id}/chain", chain(http.HandlerFunc(h.SaveChain)))
	mux.Handle("DELETE /api/v1/tasks/{id}/chain", chain(http.HandlerFunc(h.DeleteChain)))

	// Executions
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("GET /api/v1/executions/{id}/steps", chain(http.HandlerFunc(h.ListExecutionSteps)))
}

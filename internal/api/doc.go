// Package api содержит HTTP API сервер управления.
//
// Структура:
//   - handler.go           — Handler с DI (репозитории, publisher, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request'ы)
//   - validate.go          — граница сохранения: валидация tasks, chains,
//     conditions и extract-правил
//   - task_handler.go      — обработчики /tasks (включая chain и manual run)
//   - execution_handler.go — обработчики /executions (история runs)
//
// API — единственное место, где конфигурация tasks и chains проверяется:
// execution core доверяет сохранённым данным и валидацию не повторяет.
package api

// Package telemetry обеспечивает наблюдаемость execution core.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Все daemon'ы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry

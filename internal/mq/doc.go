// Package mq — инфраструктура RabbitMQ для событий execution core.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление с ручным ack/nack
//
// События:
//   - run.requested        — scheduler создал due run, orchestrator должен его принять
//   - execution.completed  — run завершён (нотификации, webhook'и)
//
// Exchanges:
//   - conveyor.runs        — события runs
//   - conveyor.executions  — события завершения
//   - conveyor.dlq         — dead letter queue
//
// MQ опционален: при недоступном брокере orchestrator подхватывает
// pending executions через polling БД.
package mq

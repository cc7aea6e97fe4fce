package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип события в очереди.
type MessageType string

// Типы событий.
const (
	MessageTypeRunRequested       MessageType = "run.requested"
	MessageTypeExecutionCompleted MessageType = "execution.completed"
)

// Message — конверт события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип события.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — событие о due run'е, ожидающем admission.
type RunRequestedPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	TaskID      uuid.UUID `json:"task_id"`
}

// ExecutionCompletedPayload — событие о завершённом run'е.
// Потребители: нотификации, webhook'и, внешние интеграции.
type ExecutionCompletedPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	TaskID      uuid.UUID `json:"task_id"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

// Publisher публикует события в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // переживает рестарт брокера
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequested публикует событие о due run'е.
// Потребитель: Orchestrator.
func (p *Publisher) PublishRunRequested(ctx context.Context, executionID, taskID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunRequested,
		Payload:   RunRequestedPayload{ExecutionID: executionID, TaskID: taskID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg)
}

// PublishExecutionCompleted публикует событие о завершённом run'е.
func (p *Publisher) PublishExecutionCompleted(ctx context.Context, payload ExecutionCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecutionCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyCompleted, msg)
}

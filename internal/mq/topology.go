package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeRuns       Exchange = "conveyor.runs"
	ExchangeExecutions Exchange = "conveyor.executions"
	ExchangeDLQ        Exchange = "conveyor.dlq"
)

// Queues.
const (
	QueueRunsRequested       Queue = "runs.requested"
	QueueExecutionsCompleted Queue = "executions.completed"
	QueueDLQRuns             Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQRuns   RoutingKey = "runs"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []Exchange{ExchangeRuns, ExchangeExecutions, ExchangeDLQ}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// runs.requested — с DLQ: битые события run'ов уходят туда
		{QueueRunsRequested, dlqArgs},

		// executions.completed — события завершения, без DLQ
		{QueueExecutionsCompleted, nil},

		// dlq.runs — сама DLQ-очередь
		{QueueDLQRuns, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunsRequested, RoutingKeyRequested, ExchangeRuns},
		{QueueExecutionsCompleted, RoutingKeyCompleted, ExchangeExecutions},
		{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeDeployments Exchange = "conveyor.deployments"
	ExchangeRuns        Exchange = "conveyor.runs"
	ExchangeDLQ         Exchange = "conveyor.dlq"
)

// Queues — имена очередей.
const (
	QueueDeploymentsPending Queue = "deployments.pending"
	QueueRunsSubmitted      Queue = "runs.submitted"
	QueueRunsStatus         Queue = "runs.status"
	QueueDLQDeployments     Queue = "dlq.deployments"
)

// Routing keys.
const (
	RoutingKeyPending        RoutingKey = "pending"
	RoutingKeySubmitted      RoutingKey = "submitted"
	RoutingKeyStatus         RoutingKey = "status"
	RoutingKeyDLQDeployments RoutingKey = "deployments"
)

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

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeDeployments, "direct"},
		{ExchangeRuns, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQDeployments),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// deployments.pending — с DLQ (run, который launcher не смог
		// отправить после retry, уходит в DLQ)
		{QueueDeploymentsPending, dlqArgs},

		// runs.submitted — без DLQ (poller в любом случае подхватит
		// run через периодический обход)
		{QueueRunsSubmitted, nil},

		// runs.status — без DLQ (события переходов статуса)
		{QueueRunsStatus, nil},

		// dlq.deployments — сама DLQ очередь
		{QueueDLQDeployments, nil},
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

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueDeploymentsPending, RoutingKeyPending, ExchangeDeployments},
		{QueueRunsSubmitted, RoutingKeySubmitted, ExchangeRuns},
		{QueueRunsStatus, RoutingKeyStatus, ExchangeRuns},
		{QueueDLQDeployments, RoutingKeyDLQDeployments, ExchangeDLQ},
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

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conveyor RabbitMQ Topology:

    conveyor.deployments (direct)
    └── deployments.pending [routing: pending]
            Consumer: Launcher
            DLQ: dlq.deployments

    conveyor.runs (direct)
    ├── runs.submitted [routing: submitted]
    │       Consumer: Poller
    └── runs.status [routing: status]
            Consumer: external subscribers

    conveyor.dlq (direct)
    └── dlq.deployments [routing: deployments]
            Manual processing
  `
}

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

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeDeploymentPending MessageType = "deployment.pending"
	MessageTypeRunSubmitted      MessageType = "run.submitted"
	MessageTypeRunStatus         MessageType = "run.status"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// DeploymentPendingPayload — payload для сообщения о run,
// ожидающем отправки в оркестратор.
type DeploymentPendingPayload struct {
	RunID        uuid.UUID `json:"run_id"`
	DeploymentID uuid.UUID `json:"deployment_id"`
}

// RunSubmittedPayload — payload для сообщения об отправленном run.
type RunSubmittedPayload struct {
	RunID        uuid.UUID `json:"run_id"`
	ExecutionARN string    `json:"execution_arn"`
}

// RunStatusPayload — payload для сообщения о смене статуса run.
type RunStatusPayload struct {
	RunID  uuid.UUID `json:"run_id"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
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

// PublishDeploymentPending публикует событие о run, ожидающем отправки.
// Потребитель: Launcher.
func (p *Publisher) PublishDeploymentPending(ctx context.Context, runID, deploymentID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeDeploymentPending,
		Payload:   DeploymentPendingPayload{RunID: runID, DeploymentID: deploymentID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeDeployments, RoutingKeyPending, msg)
}

// PublishRunSubmitted публикует событие об отправленном run.
// Потребитель: Poller.
func (p *Publisher) PublishRunSubmitted(ctx context.Context, runID uuid.UUID, executionARN string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunSubmitted,
		Payload:   RunSubmittedPayload{RunID: runID, ExecutionARN: executionARN},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeySubmitted, msg)
}

// PublishRunStatus публикует событие о смене статуса run.
func (p *Publisher) PublishRunStatus(ctx context.Context, payload RunStatusPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunStatus,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyStatus, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}

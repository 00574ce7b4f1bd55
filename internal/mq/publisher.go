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
	MessageTypeScheduleDue   MessageType = "schedule.due"
	MessageTypeTaskReady     MessageType = "task.ready"
	MessageTypeTaskCompleted MessageType = "task.completed"
	MessageTypeTaskCancel    MessageType = "task.cancel"
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

// ScheduleDuePayload — payload для сообщения о наступившем schedule.
type ScheduleDuePayload struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	TitleID    uuid.UUID `json:"title_id"`
}

// TaskReadyPayload — payload для сообщения о задаче в очереди.
// Worker использует его как «толчок» для немедленного claim вместо
// ожидания следующего цикла polling.
type TaskReadyPayload struct {
	TaskID uuid.UUID `json:"task_id"`
	Kind   string    `json:"kind"`
}

// TaskCompletedPayload — payload для сообщения о завершённой задаче.
type TaskCompletedPayload struct {
	TaskID     uuid.UUID  `json:"task_id"`
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	Status     string     `json:"status"` // completed или failed
	Error      string     `json:"error,omitempty"`
	Attempt    int        `json:"attempt"`
}

// TaskCancelPayload — payload команды отмены задачи.
type TaskCancelPayload struct {
	TaskID uuid.UUID `json:"task_id"`
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

// PublishScheduleDue публикует событие о schedule, чьё время наступило.
// Потребитель: Pipeline.
func (p *Publisher) PublishScheduleDue(ctx context.Context, scheduleID, titleID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeScheduleDue,
		Payload:   ScheduleDuePayload{ScheduleID: scheduleID, TitleID: titleID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSchedules, RoutingKeyDue, msg)
}

// PublishTaskReady публикует событие о задаче, поставленной в очередь.
// Потребитель: Worker.
func (p *Publisher) PublishTaskReady(ctx context.Context, taskID uuid.UUID, kind string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskReady,
		Payload:   TaskReadyPayload{TaskID: taskID, Kind: kind},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyReady, msg)
}

// PublishTaskCompleted публикует событие о завершённой задаче.
// Потребитель: Pipeline.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyCompleted, msg)
}

// PublishTaskCancel рассылает команду отмены всем worker через fanout.
// Worker, выполняющий задачу, убивает её процесс; остальные игнорируют.
func (p *Publisher) PublishTaskCancel(ctx context.Context, taskID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskCancel,
		Payload:   TaskCancelPayload{TaskID: taskID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeControl, "", msg)
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

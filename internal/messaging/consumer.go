package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskProcessor обрабатывает одну задачу. Ошибка означает Nack без requeue (сообщение уходит в DLQ).
type TaskProcessor interface {
	Handle(ctx context.Context, payload ChapterStoryTaskPayload) error
}

// TaskConsumer читает задачи генерации историй из очереди RabbitMQ.
type TaskConsumer struct {
	channel   *amqp.Channel
	queueName string
	processor TaskProcessor
	logger    *zap.Logger
	done      chan struct{}
	tag       string
}

// NewTaskConsumer создает консьюмер. Топология очереди должна быть объявлена заранее.
func NewTaskConsumer(ch *amqp.Channel, queueName string, processor TaskProcessor, logger *zap.Logger) *TaskConsumer {
	return &TaskConsumer{
		channel:   ch,
		queueName: queueName,
		processor: processor,
		logger:    logger.Named("TaskConsumer"),
		done:      make(chan struct{}),
		tag:       "chronicler-" + queueName,
	}
}

// Start выставляет prefetch=1 и запускает горутину обработки.
func (c *TaskConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("не удалось установить QoS: %w", err)
	}
	msgs, err := c.channel.Consume(c.queueName, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать консьюмера для '%s': %w", c.queueName, err)
	}
	c.logger.Info("Task consumer started", zap.String("queue", c.queueName))

	go func() {
		defer close(c.done)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Info("Delivery channel closed, consumer goroutine exiting")
					return
				}
				c.handleDelivery(ctx, msg)
			case <-ctx.Done():
				c.logger.Info("Context cancelled, consumer goroutine exiting")
				return
			}
		}
	}()
	return nil
}

func (c *TaskConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var payload ChapterStoryTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.Error("Ошибка десериализации задачи, отклоняем сообщение", zap.Error(err), zap.ByteString("body", msg.Body))
		_ = msg.Nack(false, false)
		return
	}
	log := c.logger.With(zap.String("task_id", payload.TaskID), zap.String("chapter_id", payload.ChapterID))

	if err := c.process(ctx, payload); err != nil {
		log.Warn("Task failed, nack without requeue", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack delivery", zap.Error(err))
	}
}

// process защищает цикл консьюмера от паники обработчика.
func (c *TaskConsumer) process(ctx context.Context, payload ChapterStoryTaskPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in task processor: %v", r)
		}
	}()
	return c.processor.Handle(ctx, payload)
}

// Stop отменяет подписку и ждет завершения текущей задачи.
func (c *TaskConsumer) Stop(timeout time.Duration) {
	if err := c.channel.Cancel(c.tag, false); err != nil {
		c.logger.Warn("Error cancelling consumer", zap.Error(err))
	}
	select {
	case <-c.done:
		c.logger.Info("Task consumer stopped")
	case <-time.After(timeout):
		c.logger.Warn("Timeout waiting for task consumer to stop")
	}
}

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationPublisher отправляет уведомления о завершении задач.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload StoryNotificationPayload) error
}

type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQPublisher объявляет очередь уведомлений и возвращает publisher.
// Канал закрывает вызывающий.
func NewRabbitMQPublisher(ch *amqp.Channel, queueName string, logger *zap.Logger) (NotificationPublisher, error) {
	_, err := ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{"x-queue-mode": "lazy"})
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь уведомлений '%s': %w", queueName, err)
	}
	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("StoryPublisher"),
	}, nil
}

func (p *rabbitMQPublisher) Publish(ctx context.Context, payload StoryNotificationPayload) error {
	log := p.logger.With(zap.String("task_id", payload.TaskID), zap.String("chapter_id", payload.ChapterID))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		AppId:        "chronicler",
		MessageId:    payload.TaskID + "-notif",
	})
	if err != nil {
		log.Error("Failed to publish story notification", zap.Error(err))
		return fmt.Errorf("ошибка публикации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	log.Info("Story notification published", zap.String("queue", p.queueName), zap.String("status", string(payload.Status)))
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chronicle-server/internal/auth"
	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/messaging"
	"chronicle-server/internal/models"

	"go.uber.org/zap"
)

// ErrInvalidTask - задача без идентификатора главы или пользователя.
var ErrInvalidTask = errors.New("invalid chapter story task")

// StoryService - точка входа пайплайна истории главы.
type StoryService interface {
	GenerateStoryForChapter(ctx context.Context, chapterID string, force bool) (*chronicle.GenerateResult, error)
}

// TaskHandler обрабатывает задачи генерации историй из очереди.
type TaskHandler struct {
	stories   StoryService
	publisher messaging.NotificationPublisher
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTaskHandler создает обработчик задач. timeout ограничивает одну задачу целиком.
func NewTaskHandler(stories StoryService, publisher messaging.NotificationPublisher, timeout time.Duration, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		stories:   stories,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.Named("TaskHandler"),
	}
}

// Handle выполняет задачу от имени пользователя из payload и публикует уведомление.
// Ошибка пайплайна возвращается, чтобы консьюмер отправил задачу в DLQ.
// Уведомление best effort: его сбой только логируется.
func (h *TaskHandler) Handle(ctx context.Context, payload messaging.ChapterStoryTaskPayload) error {
	tasksReceived.Inc()
	start := time.Now()
	defer func() { taskDuration.Observe(time.Since(start).Seconds()) }()

	log := h.logger.With(
		zap.String("task_id", payload.TaskID),
		zap.String("chapter_id", payload.ChapterID),
		zap.String("user_id", payload.UserID),
		zap.Bool("force", payload.Force),
	)
	log.Info("Обработка задачи истории главы")

	notification := messaging.StoryNotificationPayload{
		TaskID:    payload.TaskID,
		UserID:    payload.UserID,
		ChapterID: payload.ChapterID,
	}

	if strings.TrimSpace(payload.ChapterID) == "" || strings.TrimSpace(payload.UserID) == "" {
		tasksFailed.WithLabelValues("invalid_payload").Inc()
		log.Warn("Task rejected: chapterId and userId are required")
		return fmt.Errorf("%w: task %s", ErrInvalidTask, payload.TaskID)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	ctx = auth.WithUserID(ctx, payload.UserID)

	result, err := h.stories.GenerateStoryForChapter(ctx, payload.ChapterID, payload.Force)
	if err != nil {
		stage := models.StageOf(err)
		reason := string(stage)
		if reason == "" {
			reason = "unknown"
		}
		tasksFailed.WithLabelValues(reason).Inc()
		log.Error("Chapter story task failed", zap.String("stage", reason), zap.Error(err))

		notification.Status = messaging.NotificationStatusError
		notification.FailedStage = string(stage)
		notification.ErrorDetails = err.Error()
		if pubErr := h.publisher.Publish(context.WithoutCancel(ctx), notification); pubErr != nil {
			notificationsFailed.Inc()
			log.Warn("Failed to publish error notification", zap.Error(pubErr))
		}
		return err
	}

	notification.Cached = result.Cached
	notification.Status = messaging.NotificationStatusSuccess
	if result.Cached {
		notification.Status = messaging.NotificationStatusCached
	}
	// Таймаут задачи не должен отменять уведомление об уже сохраненной истории.
	if err := h.publisher.Publish(context.WithoutCancel(ctx), notification); err != nil {
		notificationsFailed.Inc()
		log.Warn("История сохранена, но уведомление не отправлено", zap.Error(err))
	}

	tasksSucceeded.Inc()
	log.Info("Задача истории главы выполнена", zap.Bool("cached", result.Cached), zap.Duration("duration", time.Since(start)))
	return nil
}

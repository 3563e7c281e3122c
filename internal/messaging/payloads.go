package messaging

// NotificationStatus - итог задачи генерации истории в уведомлении.
type NotificationStatus string

const (
	NotificationStatusSuccess NotificationStatus = "success"
	NotificationStatusCached  NotificationStatus = "cached"
	NotificationStatusError   NotificationStatus = "error"
)

// ChapterStoryTaskPayload - задача генерации истории главы из очереди задач.
type ChapterStoryTaskPayload struct {
	TaskID    string `json:"taskId"`
	UserID    string `json:"userId"`
	ChapterID string `json:"chapterId"`
	Force     bool   `json:"force"`
}

// StoryNotificationPayload - уведомление о завершении задачи генерации.
type StoryNotificationPayload struct {
	TaskID       string             `json:"taskId"`
	UserID       string             `json:"userId"`
	ChapterID    string             `json:"chapterId"`
	Status       NotificationStatus `json:"status"`
	Cached       bool               `json:"cached"`
	FailedStage  string             `json:"failedStage,omitempty"`
	ErrorDetails string             `json:"errorDetails,omitempty"`
}

package models

import "time"

// ChapterPacing - темп главы, задаётся при создании главы.
type ChapterPacing string

const (
	PacingCalm     ChapterPacing = "calm"
	PacingStandard ChapterPacing = "standard"
	PacingIntense  ChapterPacing = "intense"
)

// Chapter - завершённая глава игрового прогресса. Для пайплайна только чтение.
type Chapter struct {
	ID          string        `db:"id" json:"id"`
	SessionID   *string       `db:"session_id" json:"session_id,omitempty"`     // Владеющая сессия, обязательна для пайплайна
	AdventureID *string       `db:"adventure_id" json:"adventure_id,omitempty"` // Родительское приключение (может отсутствовать)
	Title       string        `db:"title" json:"title"`
	Pacing      ChapterPacing `db:"pacing" json:"pacing"`
	Context     *string       `db:"context" json:"context,omitempty"` // Свободный нарративный контекст
	Status      string        `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Adventure - контейнер ("приключение"), к которому может относиться глава.
type Adventure struct {
	ID      string  `db:"id" json:"id"`
	Title   string  `db:"title" json:"title"`
	Code    string  `db:"code" json:"code"`
	Context *string `db:"context" json:"context,omitempty"`
}

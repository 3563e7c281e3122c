package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome - итог одной попытки генерации истории.
type AttemptOutcome string

const (
	OutcomeCached  AttemptOutcome = "cached"
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeError   AttemptOutcome = "error"
)

// AuditEntry - запись аудита, одна на вызов. Только добавление.
type AuditEntry struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           string          `db:"user_id" json:"user_id"`
	ChapterID        string          `db:"chapter_id" json:"chapter_id"`
	Outcome          AttemptOutcome  `db:"outcome" json:"outcome"`
	FailedStage      *string         `db:"failed_stage" json:"failed_stage,omitempty"`
	Forced           bool            `db:"forced" json:"forced"`
	Model            *string         `db:"model" json:"model,omitempty"`
	InputPayload     json.RawMessage `db:"input_payload" json:"input_payload,omitempty"`
	Instructions     *string         `db:"instructions" json:"instructions,omitempty"`
	RawOutput        *string         `db:"raw_output" json:"raw_output,omitempty"`
	ParsedOutput     json.RawMessage `db:"parsed_output" json:"parsed_output,omitempty"`
	DurationMs       int64           `db:"duration_ms" json:"duration_ms"`
	PromptTokens     int             `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int             `db:"completion_tokens" json:"completion_tokens"`
	ErrorMessage     *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// JournalStatus - статус записи журнала, на нарративном языке.
type JournalStatus string

const (
	JournalStatusCached JournalStatus = "cached"
	JournalStatusSealed JournalStatus = "sealed"
	JournalStatusFailed JournalStatus = "failed"
)

// JournalEntryKindChapterStory - тип записи журнала для истории главы.
const JournalEntryKindChapterStory = "chapter_story"

// JournalEntry - запись нарративного журнала игрока. Пайплайн её не читает.
type JournalEntry struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	ChapterID string        `db:"chapter_id" json:"chapter_id"`
	Kind      string        `db:"kind" json:"kind"`
	Status    JournalStatus `db:"status" json:"status"`
	Message   string        `db:"message" json:"message"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

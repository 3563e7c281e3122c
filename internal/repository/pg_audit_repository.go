package repository

import (
	"context"
	"fmt"
	"time"

	"chronicle-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	_ AuditRepository   = (*pgAuditRepository)(nil)
	_ JournalRepository = (*pgJournalRepository)(nil)
)

const createAuditEntryQuery = `
INSERT INTO story_generation_audit
    (id, user_id, chapter_id, outcome, failed_stage, forced, model, input_payload, instructions,
     raw_output, parsed_output, duration_ms, prompt_tokens, completion_tokens, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const createJournalEntryQuery = `
INSERT INTO journal_entries (id, user_id, chapter_id, kind, status, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

type pgAuditRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgAuditRepository создает журнал аудита генераций.
func NewPgAuditRepository(db DBTX, logger *zap.Logger) AuditRepository {
	return &pgAuditRepository{db: db, logger: logger.Named("PgAuditRepo")}
}

func (r *pgAuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, createAuditEntryQuery,
		entry.ID,
		entry.UserID,
		entry.ChapterID,
		entry.Outcome,
		entry.FailedStage,
		entry.Forced,
		entry.Model,
		nullableJSON(entry.InputPayload),
		entry.Instructions,
		entry.RawOutput,
		nullableJSON(entry.ParsedOutput),
		entry.DurationMs,
		entry.PromptTokens,
		entry.CompletionTokens,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.String("chapterID", entry.ChapterID),
			zap.String("outcome", string(entry.Outcome)),
			zap.Error(err),
		)
		return fmt.Errorf("ошибка записи аудита генерации: %w", err)
	}
	return nil
}

type pgJournalRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgJournalRepository создает нарративный журнал игрока.
func NewPgJournalRepository(db DBTX, logger *zap.Logger) JournalRepository {
	return &pgJournalRepository{db: db, logger: logger.Named("PgJournalRepo")}
}

func (r *pgJournalRepository) Create(ctx context.Context, entry *models.JournalEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, createJournalEntryQuery,
		entry.ID,
		entry.UserID,
		entry.ChapterID,
		entry.Kind,
		entry.Status,
		entry.Message,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create journal entry",
			zap.String("chapterID", entry.ChapterID),
			zap.String("status", string(entry.Status)),
			zap.Error(err),
		)
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

// nullableJSON передает пустой json.RawMessage как NULL, а не как пустую строку.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

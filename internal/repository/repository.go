package repository

import (
	"context"

	"chronicle-server/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX - общий интерфейс для pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ChapterRepository читает главы. Пайплайн глав не изменяет.
type ChapterRepository interface {
	// GetByID возвращает главу или models.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Chapter, error)
}

// AdventureRepository читает приключения.
type AdventureRepository interface {
	// GetByID возвращает приключение или models.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Adventure, error)
}

// QuestCompletionRepository читает записи о выполнении квестов.
type QuestCompletionRepository interface {
	// ListByChapterID возвращает все записи главы в порядке хранения, без фильтрации по статусу.
	ListByChapterID(ctx context.Context, chapterID string) ([]models.QuestCompletion, error)
}

// ProfileRepository читает нарративный профиль игрока.
type ProfileRepository interface {
	// GetByUserID возвращает профиль или models.ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*models.StyleProfile, error)
}

// StoryArtifactRepository хранит истории глав, по одной на главу.
type StoryArtifactRepository interface {
	// GetByChapterID возвращает историю главы или models.ErrNotFound.
	GetByChapterID(ctx context.Context, chapterID string) (*models.StoryArtifact, error)
	// Upsert вставляет или перезаписывает историю главы. Побеждает последняя запись.
	Upsert(ctx context.Context, artifact *models.StoryArtifact) (*models.StoryArtifact, error)
}

// AuditRepository - append-only журнал попыток генерации.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

// JournalRepository - append-only нарративный журнал игрока.
type JournalRepository interface {
	Create(ctx context.Context, entry *models.JournalEntry) error
}

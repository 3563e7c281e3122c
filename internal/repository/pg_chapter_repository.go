package repository

import (
	"context"
	"errors"
	"fmt"

	"chronicle-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	_ ChapterRepository   = (*pgChapterRepository)(nil)
	_ AdventureRepository = (*pgAdventureRepository)(nil)
)

const getChapterByIDQuery = `
SELECT id, session_id, adventure_id, title, pacing, context, status, created_at
FROM chapters
WHERE id = $1`

const getAdventureByIDQuery = `
SELECT id, title, code, context
FROM adventures
WHERE id = $1`

type pgChapterRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgChapterRepository создает репозиторий глав.
func NewPgChapterRepository(db DBTX, logger *zap.Logger) ChapterRepository {
	return &pgChapterRepository{db: db, logger: logger.Named("PgChapterRepo")}
}

func (r *pgChapterRepository) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := pgxscan.Get(ctx, r.db, &chapter, getChapterByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Chapter not found", zap.String("chapterID", id))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get chapter", zap.String("chapterID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения главы %s: %w", id, err)
	}
	return &chapter, nil
}

type pgAdventureRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgAdventureRepository создает репозиторий приключений.
func NewPgAdventureRepository(db DBTX, logger *zap.Logger) AdventureRepository {
	return &pgAdventureRepository{db: db, logger: logger.Named("PgAdventureRepo")}
}

func (r *pgAdventureRepository) GetByID(ctx context.Context, id string) (*models.Adventure, error) {
	var adventure models.Adventure
	if err := pgxscan.Get(ctx, r.db, &adventure, getAdventureByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get adventure", zap.String("adventureID", id), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения приключения %s: %w", id, err)
	}
	return &adventure, nil
}

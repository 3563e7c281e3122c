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

var _ StoryArtifactRepository = (*pgStoryArtifactRepository)(nil)

const getStoryArtifactByChapterQuery = `
SELECT chapter_id, session_id, story, rendered_text, model, created_at, updated_at
FROM chapter_stories
WHERE chapter_id = $1`

// created_at сохраняется от первой генерации, updated_at двигается при каждой перезаписи.
// clock_timestamp() вычисляется под блокировкой строки, поэтому updated_at растет
// в порядке коммитов перезаписей одной главы. На этом порядке держится кэш Redis.
const upsertStoryArtifactQuery = `
INSERT INTO chapter_stories (chapter_id, session_id, story, rendered_text, model, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, clock_timestamp(), clock_timestamp())
ON CONFLICT (chapter_id) DO UPDATE SET
    session_id = EXCLUDED.session_id,
    story = EXCLUDED.story,
    rendered_text = EXCLUDED.rendered_text,
    model = EXCLUDED.model,
    updated_at = clock_timestamp()
RETURNING chapter_id, session_id, story, rendered_text, model, created_at, updated_at`

type pgStoryArtifactRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgStoryArtifactRepository создает хранилище историй глав в PostgreSQL.
func NewPgStoryArtifactRepository(db DBTX, logger *zap.Logger) StoryArtifactRepository {
	return &pgStoryArtifactRepository{db: db, logger: logger.Named("PgStoryArtifactRepo")}
}

func (r *pgStoryArtifactRepository) GetByChapterID(ctx context.Context, chapterID string) (*models.StoryArtifact, error) {
	var artifact models.StoryArtifact
	if err := pgxscan.Get(ctx, r.db, &artifact, getStoryArtifactByChapterQuery, chapterID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story artifact not found", zap.String("chapterID", chapterID))
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story artifact", zap.String("chapterID", chapterID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории главы %s: %w", chapterID, err)
	}
	return &artifact, nil
}

func (r *pgStoryArtifactRepository) Upsert(ctx context.Context, artifact *models.StoryArtifact) (*models.StoryArtifact, error) {
	var saved models.StoryArtifact
	err := pgxscan.Get(ctx, r.db, &saved, upsertStoryArtifactQuery,
		artifact.ChapterID,
		artifact.SessionID,
		artifact.Story,
		artifact.RenderedText,
		artifact.Model,
	)
	if err != nil {
		r.logger.Error("Failed to upsert story artifact", zap.String("chapterID", artifact.ChapterID), zap.Error(err))
		return nil, fmt.Errorf("ошибка сохранения истории главы %s: %w", artifact.ChapterID, err)
	}
	r.logger.Info("Story artifact upserted",
		zap.String("chapterID", saved.ChapterID),
		zap.Time("createdAt", saved.CreatedAt),
		zap.Time("updatedAt", saved.UpdatedAt),
	)
	return &saved, nil
}

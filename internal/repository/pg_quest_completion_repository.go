package repository

import (
	"context"
	"fmt"

	"chronicle-server/internal/models"

	"go.uber.org/zap"
)

var _ QuestCompletionRepository = (*pgQuestCompletionRepository)(nil)

// Порядок по id только для стабильности выборки, хронологию задаёт агрегатор.
const listQuestCompletionsByChapterQuery = `
SELECT qc.id, qc.chapter_id, qc.status, qc.created_at, qc.updated_at,
       q.id, q.title, q.room_code, q.difficulty, q.estimated_minutes
FROM quest_completions qc
JOIN quests q ON q.id = qc.quest_id
WHERE qc.chapter_id = $1
ORDER BY qc.id`

type pgQuestCompletionRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgQuestCompletionRepository создает репозиторий выполненных квестов.
func NewPgQuestCompletionRepository(db DBTX, logger *zap.Logger) QuestCompletionRepository {
	return &pgQuestCompletionRepository{db: db, logger: logger.Named("PgQuestCompletionRepo")}
}

func (r *pgQuestCompletionRepository) ListByChapterID(ctx context.Context, chapterID string) ([]models.QuestCompletion, error) {
	log := r.logger.With(zap.String("chapterID", chapterID))

	rows, err := r.db.Query(ctx, listQuestCompletionsByChapterQuery, chapterID)
	if err != nil {
		log.Error("Failed to query quest completions", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения выполненных квестов главы %s: %w", chapterID, err)
	}
	defer rows.Close()

	completions := make([]models.QuestCompletion, 0)
	for rows.Next() {
		var qc models.QuestCompletion
		if err := rows.Scan(
			&qc.ID,
			&qc.ChapterID,
			&qc.Status,
			&qc.CreatedAt,
			&qc.UpdatedAt,
			&qc.Quest.ID,
			&qc.Quest.Title,
			&qc.Quest.RoomCode,
			&qc.Quest.Difficulty,
			&qc.Quest.EstimatedMinutes,
		); err != nil {
			log.Error("Failed to scan quest completion row", zap.Error(err))
			return nil, fmt.Errorf("ошибка сканирования выполненного квеста: %w", err)
		}
		completions = append(completions, qc)
	}
	if err := rows.Err(); err != nil {
		log.Error("Error iterating quest completion rows", zap.Error(err))
		return nil, fmt.Errorf("ошибка чтения выполненных квестов главы %s: %w", chapterID, err)
	}

	log.Debug("Quest completions loaded", zap.Int("count", len(completions)))
	return completions, nil
}

package chronicle

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"
	"chronicle-server/internal/telemetry"
)

// StoryInputs - все данные, собранные для генерации истории одной главы.
type StoryInputs struct {
	UserID           string
	Chapter          models.Chapter
	Adventure        *models.Adventure // nil, если приключения нет или оно не прочиталось
	ChapterContext   *string
	AdventureContext *string
	Profile          models.StyleProfile
	// DoneQuests отсортированы хронологически, OrderHint равен индексу.
	DoneQuests []models.StoryQuestSummary
}

// SessionID возвращает идентификатор владеющей сессии. Агрегатор гарантирует, что он задан.
func (in *StoryInputs) SessionID() string {
	if in.Chapter.SessionID == nil {
		return ""
	}
	return *in.Chapter.SessionID
}

// Aggregator загружает главу, приключение, выполненные квесты и профиль игрока.
type Aggregator struct {
	chapters   repository.ChapterRepository
	adventures repository.AdventureRepository
	quests     repository.QuestCompletionRepository
	profiles   repository.ProfileRepository
	logger     telemetry.Logger
}

// NewAggregator создает Aggregator.
func NewAggregator(
	chapters repository.ChapterRepository,
	adventures repository.AdventureRepository,
	quests repository.QuestCompletionRepository,
	profiles repository.ProfileRepository,
	logger telemetry.Logger,
) *Aggregator {
	return &Aggregator{
		chapters:   chapters,
		adventures: adventures,
		quests:     quests,
		profiles:   profiles,
		logger:     logger,
	}
}

// LoadStoryInputs собирает входные данные истории главы.
// Отсутствие главы дает ErrNotFound, глава без сессии - ErrMissingReference.
// Приключение и профиль загружаются по возможности: их ошибки только логируются.
func (a *Aggregator) LoadStoryInputs(ctx context.Context, chapterID, userID string) (*StoryInputs, error) {
	meta := telemetry.Metadata{"chapter_id": chapterID, "user_id": userID}

	chapter, err := a.chapters.GetByID(ctx, chapterID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewStageError(models.StageLoading, models.ErrNotFound, err)
		}
		return nil, models.NewStageError(models.StageLoading, models.ErrPersistence, err)
	}
	if chapter.SessionID == nil || strings.TrimSpace(*chapter.SessionID) == "" {
		return nil, models.NewStageError(models.StageLoading, models.ErrMissingReference, nil)
	}

	inputs := &StoryInputs{
		UserID:         userID,
		Chapter:        *chapter,
		ChapterContext: NormalizeContext(chapter.Context),
	}

	if chapter.AdventureID != nil && *chapter.AdventureID != "" {
		adventure, err := a.adventures.GetByID(ctx, *chapter.AdventureID)
		if err != nil {
			a.logger.Warning("adventure unavailable, continuing without it", withMeta(meta, telemetry.Metadata{
				"adventure_id": *chapter.AdventureID,
				"error":        err,
			}))
		} else {
			inputs.Adventure = adventure
			inputs.AdventureContext = NormalizeContext(adventure.Context)
		}
	}

	inputs.Profile = a.loadProfile(ctx, userID, meta)

	completions, err := a.quests.ListByChapterID(ctx, chapterID)
	if err != nil {
		return nil, models.NewStageError(models.StageLoading, models.ErrPersistence, err)
	}
	inputs.DoneQuests = SortDoneQuests(completions)

	a.logger.Debug("story inputs loaded", withMeta(meta, telemetry.Metadata{
		"done_quests":   len(inputs.DoneQuests),
		"has_adventure": inputs.Adventure != nil,
	}))
	return inputs, nil
}

func (a *Aggregator) loadProfile(ctx context.Context, userID string, meta telemetry.Metadata) models.StyleProfile {
	profile, err := a.profiles.GetByUserID(ctx, userID)
	if err != nil {
		level := a.logger.Warning
		if errors.Is(err, models.ErrNotFound) {
			level = a.logger.Info
		}
		level("style profile unavailable, using default narrator", withMeta(meta, telemetry.Metadata{"error": err}))
		return models.StyleProfile{UserID: userID}
	}
	return *profile
}

// SortDoneQuests оставляет записи со статусом done, стабильно сортирует их по
// ResolveCompletedAt и проставляет OrderHint по итоговому индексу.
func SortDoneQuests(completions []models.QuestCompletion) []models.StoryQuestSummary {
	done := make([]models.QuestCompletion, 0, len(completions))
	for _, qc := range completions {
		if qc.Status == models.QuestStatusDone {
			done = append(done, qc)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		return ResolveCompletedAt(done[i]).Before(ResolveCompletedAt(done[j]))
	})

	summaries := make([]models.StoryQuestSummary, len(done))
	for i, qc := range done {
		summaries[i] = models.StoryQuestSummary{
			OrderHint:        i,
			QuestID:          qc.ID,
			Title:            strings.TrimSpace(qc.Quest.Title),
			RoomCode:         NormalizeContext(qc.Quest.RoomCode),
			Difficulty:       NormalizeContext(qc.Quest.Difficulty),
			EstimatedMinutes: qc.Quest.EstimatedMinutes,
			CompletedAt:      ResolveCompletedAt(qc),
		}
	}
	return summaries
}

// ResolveCompletedAt - момент выполнения квеста: updated_at, иначе created_at,
// иначе начало эпохи Unix.
func ResolveCompletedAt(qc models.QuestCompletion) time.Time {
	if qc.UpdatedAt != nil && !qc.UpdatedAt.IsZero() {
		return qc.UpdatedAt.UTC()
	}
	if qc.CreatedAt != nil && !qc.CreatedAt.IsZero() {
		return qc.CreatedAt.UTC()
	}
	return time.Unix(0, 0).UTC()
}

// NormalizeContext обрезает пробелы, пустую строку превращает в nil.
func NormalizeContext(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func withMeta(base, extra telemetry.Metadata) telemetry.Metadata {
	out := make(telemetry.Metadata, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

package mocks

import (
	"context"

	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

var (
	_ repository.ChapterRepository         = (*ChapterRepository)(nil)
	_ repository.AdventureRepository       = (*AdventureRepository)(nil)
	_ repository.QuestCompletionRepository = (*QuestCompletionRepository)(nil)
	_ repository.ProfileRepository         = (*ProfileRepository)(nil)
)

// Mock ChapterRepository
type ChapterRepository struct {
	mock.Mock
}

func (m *ChapterRepository) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	args := m.Called(ctx, id)
	chapter, _ := args.Get(0).(*models.Chapter)
	return chapter, args.Error(1)
}

// Mock AdventureRepository
type AdventureRepository struct {
	mock.Mock
}

func (m *AdventureRepository) GetByID(ctx context.Context, id string) (*models.Adventure, error) {
	args := m.Called(ctx, id)
	adventure, _ := args.Get(0).(*models.Adventure)
	return adventure, args.Error(1)
}

// Mock QuestCompletionRepository
type QuestCompletionRepository struct {
	mock.Mock
}

func (m *QuestCompletionRepository) ListByChapterID(ctx context.Context, chapterID string) ([]models.QuestCompletion, error) {
	args := m.Called(ctx, chapterID)
	completions, _ := args.Get(0).([]models.QuestCompletion)
	return completions, args.Error(1)
}

// Mock ProfileRepository
type ProfileRepository struct {
	mock.Mock
}

func (m *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.StyleProfile, error) {
	args := m.Called(ctx, userID)
	profile, _ := args.Get(0).(*models.StyleProfile)
	return profile, args.Error(1)
}

package mocks

import (
	"context"

	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockStoryArtifactRepository is a mock type for the StoryArtifactRepository type
type MockStoryArtifactRepository struct {
	mock.Mock
}

// GetByChapterID provides a mock function with given fields: ctx, chapterID
func (_m *MockStoryArtifactRepository) GetByChapterID(ctx context.Context, chapterID string) (*models.StoryArtifact, error) {
	ret := _m.Called(ctx, chapterID)

	var r0 *models.StoryArtifact
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*models.StoryArtifact, error)); ok {
		return rf(ctx, chapterID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.StoryArtifact); ok {
		r0 = rf(ctx, chapterID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryArtifact)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, chapterID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Upsert provides a mock function with given fields: ctx, artifact
func (_m *MockStoryArtifactRepository) Upsert(ctx context.Context, artifact *models.StoryArtifact) (*models.StoryArtifact, error) {
	ret := _m.Called(ctx, artifact)

	var r0 *models.StoryArtifact
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, *models.StoryArtifact) (*models.StoryArtifact, error)); ok {
		return rf(ctx, artifact)
	}
	if rf, ok := ret.Get(0).(func(context.Context, *models.StoryArtifact) *models.StoryArtifact); ok {
		r0 = rf(ctx, artifact)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryArtifact)
	}

	if rf, ok := ret.Get(1).(func(context.Context, *models.StoryArtifact) error); ok {
		r1 = rf(ctx, artifact)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockStoryArtifactRepository creates a new instance of MockStoryArtifactRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockStoryArtifactRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStoryArtifactRepository {
	m := &MockStoryArtifactRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ repository.StoryArtifactRepository = (*MockStoryArtifactRepository)(nil)

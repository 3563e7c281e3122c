package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chronicle-server/internal/api"
	"chronicle-server/internal/auth"
	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/models"
	repomocks "chronicle-server/internal/repository/mocks"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jwtTestSecret = "test-secret-for-handlers"

// Mock StoryService
type StoryService struct {
	mock.Mock
}

func (m *StoryService) GenerateStoryForChapter(ctx context.Context, chapterID string, force bool) (*chronicle.GenerateResult, error) {
	args := m.Called(ctx, chapterID, force)
	result, _ := args.Get(0).(*chronicle.GenerateResult)
	return result, args.Error(1)
}

func signToken(t *testing.T, userID string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(jwtTestSecret))
	require.NoError(t, err)
	return signed
}

func setupRouter(t *testing.T) (*gin.Engine, *StoryService, *repomocks.MockStoryArtifactRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := auth.NewJWTVerifier(jwtTestSecret, zap.NewNop())
	require.NoError(t, err)
	stories := new(StoryService)
	t.Cleanup(func() { stories.AssertExpectations(t) })
	artifacts := repomocks.NewMockStoryArtifactRepository(t)

	router := gin.New()
	router.Use(api.ZapLoggingMiddleware(zap.NewNop()))
	api.NewStoryHandler(stories, artifacts, verifier, zap.NewNop()).RegisterRoutes(router)
	return router, stories, artifacts
}

func storedArtifact() *models.StoryArtifact {
	return &models.StoryArtifact{
		ChapterID:    "C1",
		SessionID:    "S1",
		Story:        json.RawMessage(`{"title":"T","summary":"S","scenes":[],"trophies":[],"mj_verdict":"V"}`),
		RenderedText: "S\n\nV",
		Model:        "test-model",
		CreatedAt:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func userInContext(expected string) interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		userID, ok := auth.UserIDFromContext(ctx)
		return ok && userID == expected
	})
}

func TestGetStory_ReturnsStored(t *testing.T) {
	router, _, artifacts := setupRouter(t)
	artifacts.On("GetByChapterID", mock.Anything, "C1").Return(storedArtifact(), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chapters/C1/story", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Equal(t, "C1", body.ChapterID)
	assert.Equal(t, "S1", body.SessionID)
	assert.Equal(t, "T", body.Story.Title)
	assert.Equal(t, "S\n\nV", body.RenderedText)
	assert.Equal(t, "2024-06-01T09:00:00Z", body.CreatedAt)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestGetStory_NotStored(t *testing.T) {
	router, _, artifacts := setupRouter(t)
	artifacts.On("GetByChapterID", mock.Anything, "C1").Return(nil, models.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chapters/C1/story", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"story not found"}`, rec.Body.String())
}

func TestGetStory_ReadFailureHidesCause(t *testing.T) {
	router, _, artifacts := setupRouter(t)
	artifacts.On("GetByChapterID", mock.Anything, "C1").Return(nil, errors.New("pool exhausted")).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chapters/C1/story", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pool exhausted")
}

func TestPostStory_Generates(t *testing.T) {
	router, stories, _ := setupRouter(t)
	stories.On("GenerateStoryForChapter", userInContext("user-1"), "C1", false).
		Return(&chronicle.GenerateResult{Story: storedArtifact(), Cached: false}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chapters/C1/story", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Cached)
	assert.Equal(t, "test-model", body.Model)
}

func TestPostStory_ForceFromBody(t *testing.T) {
	router, stories, _ := setupRouter(t)
	stories.On("GenerateStoryForChapter", mock.Anything, "C1", true).
		Return(&chronicle.GenerateResult{Story: storedArtifact()}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chapters/C1/story", bytes.NewBufferString(`{"force":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostStory_ForceQuery(t *testing.T) {
	router, stories, _ := setupRouter(t)
	stories.On("GenerateStoryForChapter", mock.Anything, "C1", true).
		Return(&chronicle.GenerateResult{Story: storedArtifact()}, nil).Once()

	token := signToken(t, "user-1", time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chapters/C1/story?force=true", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chapters/C1/story?force=maybe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStory_Unauthorized(t *testing.T) {
	router, _, _ := setupRouter(t)

	cases := map[string]string{
		"no header":     "",
		"wrong scheme":  "Basic abc",
		"expired token": "Bearer " + signToken(t, "user-1", -time.Hour),
		"garbage token": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/chapters/C1/story", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestStory_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", models.NewStageError(models.StageLoading, models.ErrNotFound, nil), http.StatusNotFound},
		{"missing reference", models.NewStageError(models.StageLoading, models.ErrMissingReference, nil), http.StatusUnprocessableEntity},
		{"generation", models.NewStageError(models.StageGenerating, models.ErrGeneration, errors.New("429")), http.StatusBadGateway},
		{"validation", models.NewStageError(models.StageValidating, models.ErrValidation, nil), http.StatusBadGateway},
		{"persistence", models.NewStageError(models.StagePersisting, models.ErrPersistence, errors.New("deadlock")), http.StatusInternalServerError},
		{"auth", models.NewStageError(models.StageAuthenticating, models.ErrAuth, nil), http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, stories, _ := setupRouter(t)
			stories.On("GenerateStoryForChapter", mock.Anything, "C1", false).Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chapters/C1/story", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", time.Hour))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "deadlock")
		})
	}
}

func TestHealth(t *testing.T) {
	router, _, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

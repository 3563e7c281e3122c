package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StoryService - операция генерации истории главы.
type StoryService interface {
	GenerateStoryForChapter(ctx context.Context, chapterID string, force bool) (*chronicle.GenerateResult, error)
}

// StoryReader читает сохраненную историю без генерации.
type StoryReader interface {
	GetByChapterID(ctx context.Context, chapterID string) (*models.StoryArtifact, error)
}

// StoryHandler обслуживает HTTP API историй глав.
type StoryHandler struct {
	stories  StoryService
	reader   StoryReader
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewStoryHandler создает StoryHandler.
func NewStoryHandler(stories StoryService, reader StoryReader, verifier TokenVerifier, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		stories:  stories,
		reader:   reader,
		verifier: verifier,
		logger:   logger.Named("StoryHandler"),
	}
}

type generateStoryRequest struct {
	Force bool `json:"force"`
}

// StoryResponse - тело успешного ответа.
type StoryResponse struct {
	ChapterID    string                  `json:"chapter_id"`
	SessionID    string                  `json:"session_id"`
	Cached       bool                    `json:"cached"`
	Model        string                  `json:"model"`
	Story        *models.StructuredStory `json:"story"`
	RenderedText string                  `json:"rendered_text"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
}

// RegisterRoutes регистрирует маршруты на роутере gin.
func (h *StoryHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	chapters := router.Group("/api/v1/chapters", AuthMiddleware(h.verifier, h.logger))
	{
		chapters.GET("/:chapter_id/story", h.getStory)
		chapters.POST("/:chapter_id/story", h.generateStory)
	}
}

// getStory отдает сохраненную историю. Генерацию не запускает.
func (h *StoryHandler) getStory(c *gin.Context) {
	chapterID := c.Param("chapter_id")
	artifact, err := h.reader.GetByChapterID(c.Request.Context(), chapterID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
			return
		}
		_ = c.Error(err)
		h.logger.Error("Failed to read chapter story", zap.String("chapter_id", chapterID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	h.writeStory(c, artifact, true)
}

// generateStory запускает пайплайн. force берется из тела или из ?force.
func (h *StoryHandler) generateStory(c *gin.Context) {
	var req generateStoryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		req.Force = req.Force || parsed
	}

	chapterID := c.Param("chapter_id")
	result, err := h.stories.GenerateStoryForChapter(c.Request.Context(), chapterID, req.Force)
	if err != nil {
		status, message := mapError(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		h.logger.Warn("Chapter story request failed",
			zap.String("chapter_id", chapterID),
			zap.String("stage", string(models.StageOf(err))),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": message})
		return
	}
	h.writeStory(c, result.Story, result.Cached)
}

func (h *StoryHandler) writeStory(c *gin.Context, artifact *models.StoryArtifact, cached bool) {
	story, err := artifact.DecodeStory()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored story is unreadable"})
		return
	}

	c.JSON(http.StatusOK, StoryResponse{
		ChapterID:    artifact.ChapterID,
		SessionID:    artifact.SessionID,
		Cached:       cached,
		Model:        artifact.Model,
		Story:        story,
		RenderedText: artifact.RenderedText,
		CreatedAt:    artifact.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    artifact.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

// mapError переводит ошибку пайплайна в HTTP-статус. Тексты ошибок стабильны.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrMissingReference):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, models.ErrGeneration), errors.Is(err, models.ErrValidation):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "story generation timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

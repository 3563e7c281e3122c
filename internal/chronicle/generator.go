package chronicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chronicle-server/internal/auth"
	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"
	"chronicle-server/internal/service"
	"chronicle-server/internal/telemetry"
)

// GenerateResult - история главы и признак того, что она взята из хранилища.
type GenerateResult struct {
	Story  *models.StoryArtifact `json:"story"`
	Cached bool                  `json:"cached"`
}

// GeneratorConfig - настройки пайплайна, передаются по значению.
type GeneratorConfig struct {
	Budget     SceneBudget
	Truncation TruncationPolicy
}

// DefaultGeneratorConfig возвращает бюджет 4/8/12 и усечение с сохранением ранних квестов.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{Budget: DefaultSceneBudget(), Truncation: TruncateKeepEarliest}
}

// StoryGenerator - оркестратор генерации истории главы.
type StoryGenerator struct {
	auth       auth.Authenticator
	aggregator *Aggregator
	artifacts  repository.StoryArtifactRepository
	client     service.GenerationClient
	notifier   *Notifier
	locker     *ChapterLocker
	logger     telemetry.Logger
	cfg        GeneratorConfig
}

// Option настраивает StoryGenerator.
type Option func(*StoryGenerator)

// WithChapterLocker включает сериализацию вызовов по главе внутри процесса.
func WithChapterLocker(locker *ChapterLocker) Option {
	return func(g *StoryGenerator) { g.locker = locker }
}

// NewStoryGenerator создает оркестратор. Клиент генерации передается явно.
func NewStoryGenerator(
	authenticator auth.Authenticator,
	aggregator *Aggregator,
	artifacts repository.StoryArtifactRepository,
	client service.GenerationClient,
	notifier *Notifier,
	logger telemetry.Logger,
	cfg GeneratorConfig,
	opts ...Option,
) *StoryGenerator {
	g := &StoryGenerator{
		auth:       authenticator,
		aggregator: aggregator,
		artifacts:  artifacts,
		client:     client,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// run - состояние одного вызова.
type run struct {
	g       *StoryGenerator
	ctx     context.Context
	timer   telemetry.Timer
	attempt Attempt
	stage   models.PipelineStage
}

// GenerateStoryForChapter возвращает историю главы. Без force сохраненная история
// возвращается как есть и генерация не вызывается. Любая прерывающая ошибка -
// *models.StageError; запись аудита и журнала на результат не влияет.
func (g *StoryGenerator) GenerateStoryForChapter(ctx context.Context, chapterID string, force bool) (*GenerateResult, error) {
	r := &run{
		g:       g,
		ctx:     ctx,
		attempt: Attempt{ChapterID: chapterID, Forced: force},
	}
	r.timer = g.logger.StartTimer("generate_chapter_story", telemetry.Metadata{"chapter_id": chapterID, "force": force})

	r.enter(models.StageAuthenticating)
	userID, err := g.auth.UserID(ctx)
	if err != nil {
		return r.fail(models.ErrAuth, err)
	}
	r.attempt.UserID = userID

	if g.locker != nil {
		unlock := g.locker.Lock(chapterID)
		defer unlock()
	}

	r.enter(models.StageLoading)
	inputs, err := g.aggregator.LoadStoryInputs(ctx, chapterID, userID)
	if err != nil {
		return r.fail(models.ErrPersistence, err)
	}
	r.attempt.ChapterTitle = inputs.Chapter.Title

	if !force {
		r.enter(models.StageCacheCheck)
		artifact, err := g.artifacts.GetByChapterID(ctx, chapterID)
		switch {
		case err == nil:
			story, decodeErr := artifact.DecodeStory()
			if decodeErr == nil {
				storyCacheTotal.WithLabelValues("hit").Inc()
				return r.cacheHit(artifact, story)
			}
			// Нечитаемая сохраненная история перегенерируется и перезаписывается.
			storyCacheTotal.WithLabelValues("unreadable").Inc()
			g.logger.Warning("stored story is unreadable, regenerating", telemetry.Metadata{
				"chapter_id": chapterID,
				"error":      decodeErr.Error(),
			})
		case errors.Is(err, models.ErrNotFound):
			storyCacheTotal.WithLabelValues("miss").Inc()
		default:
			// Без чтения кэша нельзя гарантировать одну генерацию на главу.
			return r.fail(models.ErrPersistence, err)
		}
	} else {
		storyCacheTotal.WithLabelValues("skipped").Inc()
	}

	r.enter(models.StageBuilding)
	prompt, err := BuildPrompt(inputs, g.cfg.Budget, g.cfg.Truncation)
	if err != nil {
		return r.fail(models.ErrGeneration, err)
	}
	r.attempt.InputPayload = prompt.Payload
	r.attempt.Instructions = prompt.Instructions
	if prompt.Dropped > 0 {
		storyScenesDropped.Add(float64(prompt.Dropped))
		g.logger.Info("quests truncated by scene budget", telemetry.Metadata{
			"chapter_id": chapterID,
			"max_scenes": prompt.MaxScenes,
			"dropped":    prompt.Dropped,
			"policy":     string(g.cfg.Truncation),
		})
	}

	r.enter(models.StageGenerating)
	generated, err := g.client.Generate(ctx, service.GenerationRequest{
		UserID:       userID,
		Instructions: prompt.Instructions,
		Payload:      prompt.Payload,
		SchemaName:   StorySchemaName,
		Schema:       StoryResponseSchema(),
	})
	if err != nil {
		r.attempt.Model = g.client.ModelName()
		return r.fail(models.ErrGeneration, err)
	}
	r.attempt.Model = generated.Model
	r.attempt.RawOutput = generated.Text
	r.attempt.PromptTokens = generated.Usage.PromptTokens
	r.attempt.CompletionTokens = generated.Usage.CompletionTokens

	r.enter(models.StageValidating)
	story, err := ValidateStory(generated.Text, prompt.Context.Quests)
	if err != nil {
		return r.fail(models.ErrValidation, err)
	}
	r.attempt.Story = story

	r.enter(models.StagePersisting)
	storyJSON, err := json.Marshal(story)
	if err != nil {
		return r.fail(models.ErrPersistence, fmt.Errorf("ошибка сериализации истории: %w", err))
	}
	saved, err := g.artifacts.Upsert(ctx, &models.StoryArtifact{
		ChapterID:    chapterID,
		SessionID:    inputs.SessionID(),
		Story:        storyJSON,
		RenderedText: RenderStory(*story),
		Model:        generated.Model,
	})
	if err != nil {
		return r.fail(models.ErrPersistence, err)
	}

	r.enter(models.StageNotifying)
	r.attempt.Outcome = models.OutcomeSuccess
	r.attempt.Duration = r.timer.Elapsed()
	g.notifier.RecordAttempt(ctx, r.attempt)

	r.done(telemetry.Metadata{"scenes": len(story.Scenes), "trophies": len(story.Trophies), "model": generated.Model})
	return &GenerateResult{Story: saved, Cached: false}, nil
}

func (r *run) enter(stage models.PipelineStage) {
	r.stage = stage
	r.g.logger.Debug("pipeline stage", telemetry.Metadata{"chapter_id": r.attempt.ChapterID, "stage": string(stage)})
}

func (r *run) cacheHit(artifact *models.StoryArtifact, story *models.StructuredStory) (*GenerateResult, error) {
	r.enter(models.StageCacheHit)
	r.attempt.Outcome = models.OutcomeCached
	r.attempt.Model = artifact.Model
	r.attempt.Story = story

	r.enter(models.StageNotifying)
	r.attempt.Duration = r.timer.Elapsed()
	r.g.notifier.RecordAttempt(r.ctx, r.attempt)

	r.done(telemetry.Metadata{"cached": true})
	return &GenerateResult{Story: artifact, Cached: true}, nil
}

func (r *run) done(meta telemetry.Metadata) {
	r.stage = models.StageDone
	storyGenerationsTotal.WithLabelValues(string(r.attempt.Outcome), "").Inc()
	r.timer.EndSuccess(withMeta(telemetry.Metadata{
		"chapter_id": r.attempt.ChapterID,
		"user_id":    r.attempt.UserID,
		"outcome":    string(r.attempt.Outcome),
	}, meta))
}

// fail переводит вызов в failed: записывает аудит и журнал ошибки и закрывает таймер.
// kind используется, только если cause еще не несет собственный этап.
func (r *run) fail(kind error, cause error) (*GenerateResult, error) {
	err := models.NewStageError(r.stage, kind, cause)
	stage := models.StageOf(err)

	r.attempt.Outcome = models.OutcomeError
	r.attempt.FailedStage = stage
	r.attempt.Err = cause
	if cause == nil {
		r.attempt.Err = err
	}
	r.attempt.Duration = r.timer.Elapsed()
	r.g.notifier.RecordAttempt(r.ctx, r.attempt)

	r.stage = models.StageFailed
	storyGenerationsTotal.WithLabelValues(string(models.OutcomeError), string(stage)).Inc()
	r.timer.EndError(err, telemetry.Metadata{
		"chapter_id": r.attempt.ChapterID,
		"user_id":    r.attempt.UserID,
		"stage":      string(stage),
		"cause":      cause,
	})
	return nil, err
}

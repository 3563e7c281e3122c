//go:build integration

package repository_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"chronicle-server/internal/database"
	"chronicle-server/internal/models"
	"chronicle-server/internal/repository"

	"github.com/docker/docker/client"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// RepositoryIntegrationSuite проверяет pg-репозитории и кэш Redis на реальных контейнерах.
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	logger      *zap.Logger
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *redis.Client
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("chronicle_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = database.Connect(s.ctx, database.PoolConfig{DSN: dsn, MaxRetries: 5, RetryDelay: time.Second}, s.logger)
	s.Require().NoError(err, "Failed to connect to test postgres")
	s.Require().NoError(database.NewMigrator(s.pool, s.logger).Up(), "Failed to run migrations")

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start redis container")
	redisHost, err := s.rdContainer.Host(s.ctx)
	s.Require().NoError(err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	s.Require().NoError(err)
	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	s.Require().NoError(repository.PingRedis(s.ctx, s.redisClient))
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `TRUNCATE journal_entries, story_generation_audit, chapter_stories,
		quest_completions, quests, player_profiles, chapters, adventures CASCADE`)
	s.Require().NoError(err)
	s.Require().NoError(s.redisClient.FlushDB(s.ctx).Err())
}

func (s *RepositoryIntegrationSuite) seedChapter(id string, sessionID *string) {
	_, err := s.pool.Exec(s.ctx,
		`INSERT INTO chapters (id, session_id, title, pacing, context) VALUES ($1, $2, $3, 'intense', '  ')`,
		id, sessionID, "Chapter "+id)
	s.Require().NoError(err)
}

func (s *RepositoryIntegrationSuite) TestChapterRepository() {
	session := "S1"
	s.seedChapter("C1", &session)
	repo := repository.NewPgChapterRepository(s.pool, s.logger)

	chapter, err := repo.GetByID(s.ctx, "C1")
	s.Require().NoError(err)
	s.Equal("Chapter C1", chapter.Title)
	s.Equal(models.PacingIntense, chapter.Pacing)
	s.Require().NotNil(chapter.SessionID)
	s.Equal("S1", *chapter.SessionID)
	s.Nil(chapter.AdventureID)

	_, err = repo.GetByID(s.ctx, "missing")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestQuestCompletionRepository_JoinsQuest() {
	session := "S1"
	s.seedChapter("C1", &session)
	_, err := s.pool.Exec(s.ctx, `INSERT INTO quests (id, title, room_code, estimated_minutes) VALUES ('Q1', 'Find the key', 'cellar', 15)`)
	s.Require().NoError(err)
	_, err = s.pool.Exec(s.ctx, `INSERT INTO quest_completions (id, chapter_id, quest_id, status, created_at)
		VALUES ('QC1', 'C1', 'Q1', 'done', NOW()), ('QC2', 'C1', 'Q1', 'skipped', NULL)`)
	s.Require().NoError(err)

	repo := repository.NewPgQuestCompletionRepository(s.pool, s.logger)
	completions, err := repo.ListByChapterID(s.ctx, "C1")
	s.Require().NoError(err)
	s.Require().Len(completions, 2)
	s.Equal("QC1", completions[0].ID)
	s.Equal("Find the key", completions[0].Quest.Title)
	s.Require().NotNil(completions[0].Quest.RoomCode)
	s.Equal("cellar", *completions[0].Quest.RoomCode)
	s.NotNil(completions[0].CreatedAt)
	s.Nil(completions[0].UpdatedAt)
	s.Nil(completions[1].CreatedAt)
}

func (s *RepositoryIntegrationSuite) TestProfileRepository() {
	_, err := s.pool.Exec(s.ctx, `INSERT INTO player_profiles (user_id, display_name, persona_name, persona_verbosity)
		VALUES ('U1', 'Ada', 'Mira', 'short')`)
	s.Require().NoError(err)
	repo := repository.NewPgProfileRepository(s.pool, s.logger)

	profile, err := repo.GetByUserID(s.ctx, "U1")
	s.Require().NoError(err)
	s.Equal("Ada", *profile.DisplayName)
	s.Equal("Mira", *profile.Persona.Name)
	s.Equal("short", *profile.Persona.Verbosity)
	s.Nil(profile.Persona.Tone)

	_, err = repo.GetByUserID(s.ctx, "U2")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestStoryArtifactRepository_UpsertIsLastWriterWins() {
	session := "S1"
	s.seedChapter("C1", &session)
	repo := repository.NewCachedStoryArtifactRepository(
		repository.NewPgStoryArtifactRepository(s.pool, s.logger), s.redisClient, time.Minute, s.logger)

	_, err := repo.GetByChapterID(s.ctx, "C1")
	s.ErrorIs(err, models.ErrNotFound)

	first, err := repo.Upsert(s.ctx, &models.StoryArtifact{
		ChapterID: "C1", SessionID: "S1", Story: json.RawMessage(`{"title":"one"}`), RenderedText: "one", Model: "m1",
	})
	s.Require().NoError(err)

	second, err := repo.Upsert(s.ctx, &models.StoryArtifact{
		ChapterID: "C1", SessionID: "S1", Story: json.RawMessage(`{"title":"two"}`), RenderedText: "two", Model: "m2",
	})
	s.Require().NoError(err)
	s.True(second.CreatedAt.Equal(first.CreatedAt))
	s.False(second.UpdatedAt.Before(first.UpdatedAt))

	var count int
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT COUNT(*) FROM chapter_stories WHERE chapter_id = 'C1'`).Scan(&count))
	s.Equal(1, count)

	got, err := repo.GetByChapterID(s.ctx, "C1")
	s.Require().NoError(err)
	s.Equal("two", got.RenderedText)
	s.JSONEq(`{"title":"two"}`, string(got.Story))

	cached, err := s.redisClient.Exists(s.ctx, "chapter_story:v2:C1").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), cached)
}

func (s *RepositoryIntegrationSuite) TestAuditAndJournalRepositories() {
	audit := repository.NewPgAuditRepository(s.pool, s.logger)
	journal := repository.NewPgJournalRepository(s.pool, s.logger)

	stage := string(models.StageValidating)
	s.Require().NoError(audit.Create(s.ctx, &models.AuditEntry{
		UserID: "U1", ChapterID: "C1", Outcome: models.OutcomeError, FailedStage: &stage,
	}))
	s.Require().NoError(journal.Create(s.ctx, &models.JournalEntry{
		UserID: "U1", ChapterID: "C1", Kind: models.JournalEntryKindChapterStory,
		Status: models.JournalStatusFailed, Message: "failed",
	}))

	var outcome, failedStage string
	s.Require().NoError(s.pool.QueryRow(s.ctx,
		`SELECT outcome, failed_stage FROM story_generation_audit WHERE chapter_id = 'C1'`).Scan(&outcome, &failedStage))
	s.Equal("error", outcome)
	s.Equal("validating", failedStage)

	var status string
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT status FROM journal_entries WHERE chapter_id = 'C1'`).Scan(&status))
	s.Equal("failed", status)
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(RepositoryIntegrationSuite))
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chronicle-server/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ StoryArtifactRepository = (*cachedStoryArtifactRepository)(nil)

const (
	storyArtifactKeyPrefix = "chapter_story:v2:"

	cacheFieldVersion = "v"
	cacheFieldData    = "data"
)

// storeIfNewerScript пишет историю, только если в кэше нет версии новее.
// KEYS[1] - ключ главы; ARGV: версия (updated_at в микросекундах), JSON, TTL в мс.
var storeIfNewerScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'v')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// cachedStoryArtifactRepository - read-through кэш Redis поверх хранилища историй.
// Источник истины всегда PostgreSQL: ошибки Redis только логируются.
// Запись в кэш идет по версии updated_at, поэтому поздний ответ более старой
// перезаписи или чтения не вытесняет более новую историю.
type cachedStoryArtifactRepository struct {
	next   StoryArtifactRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStoryArtifactRepository оборачивает next кэшем Redis.
func NewCachedStoryArtifactRepository(next StoryArtifactRepository, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) StoryArtifactRepository {
	return &cachedStoryArtifactRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisStoryArtifactCache"),
	}
}

func storyArtifactKey(chapterID string) string {
	return storyArtifactKeyPrefix + chapterID
}

func (r *cachedStoryArtifactRepository) GetByChapterID(ctx context.Context, chapterID string) (*models.StoryArtifact, error) {
	key := storyArtifactKey(chapterID)

	data, err := r.client.HGet(ctx, key, cacheFieldData).Bytes()
	switch {
	case err == nil:
		var artifact models.StoryArtifact
		jsonErr := json.Unmarshal(data, &artifact)
		if jsonErr == nil {
			r.logger.Debug("Story artifact cache hit", zap.String("chapterID", chapterID))
			return &artifact, nil
		}
		r.logger.Warn("Corrupted story artifact in cache, falling back to database",
			zap.String("chapterID", chapterID), zap.Error(jsonErr))
		r.invalidate(ctx, chapterID)
	case errors.Is(err, redis.Nil):
		r.logger.Debug("Story artifact cache miss", zap.String("chapterID", chapterID))
	default:
		r.logger.Warn("Redis read failed, falling back to database", zap.String("chapterID", chapterID), zap.Error(err))
	}

	artifact, err := r.next.GetByChapterID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	r.store(ctx, artifact)
	return artifact, nil
}

func (r *cachedStoryArtifactRepository) Upsert(ctx context.Context, artifact *models.StoryArtifact) (*models.StoryArtifact, error) {
	saved, err := r.next.Upsert(ctx, artifact)
	if err != nil {
		return nil, err
	}
	r.store(ctx, saved)
	return saved, nil
}

func (r *cachedStoryArtifactRepository) store(ctx context.Context, artifact *models.StoryArtifact) {
	log := r.logger.With(zap.String("chapterID", artifact.ChapterID))
	if artifact.UpdatedAt.IsZero() {
		// Без версии порядок записей не определен, такую историю не кэшируем.
		log.Warn("Story artifact without updated_at, cache entry dropped")
		r.invalidate(ctx, artifact.ChapterID)
		return
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		log.Warn("Failed to marshal story artifact for cache", zap.Error(err))
		return
	}

	version := strconv.FormatInt(artifact.UpdatedAt.UnixMicro(), 10)
	written, err := storeIfNewerScript.Run(ctx, r.client,
		[]string{storyArtifactKey(artifact.ChapterID)},
		version, data, r.ttl.Milliseconds(),
	).Int()
	switch {
	case err != nil:
		log.Warn("Failed to write story artifact to cache", zap.Error(err))
		// Старое значение могло остаться, а база уже изменилась.
		r.invalidate(ctx, artifact.ChapterID)
	case written == 0:
		log.Debug("Cache already holds a newer story artifact", zap.String("version", version))
	}
}

func (r *cachedStoryArtifactRepository) invalidate(ctx context.Context, chapterID string) {
	if err := r.client.Del(ctx, storyArtifactKey(chapterID)).Err(); err != nil {
		r.logger.Warn("Failed to invalidate cached story artifact", zap.String("chapterID", chapterID), zap.Error(err))
	}
}

// PingRedis проверяет доступность Redis при старте сервиса.
func PingRedis(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chronicle-server/internal/api"
	"chronicle-server/internal/auth"
	"chronicle-server/internal/chronicle"
	"chronicle-server/internal/config"
	"chronicle-server/internal/database"
	"chronicle-server/internal/logger"
	"chronicle-server/internal/messaging"
	"chronicle-server/internal/repository"
	"chronicle-server/internal/service"
	"chronicle-server/internal/telemetry"
	"chronicle-server/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// .env нужен только для локального запуска
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Service: "chronicler"})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Запуск chronicler", zap.String("env", cfg.Env), zap.String("ai_client", cfg.AIClientType), zap.String("model", cfg.AIModel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
		MaxRetries:  cfg.DBConnectRetries,
		RetryDelay:  3 * time.Second,
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBRunMigrations {
		if err := database.NewMigrator(pool, log).Up(); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// --- Repositories ---
	var artifacts repository.StoryArtifactRepository = repository.NewPgStoryArtifactRepository(pool, log)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()
	if err := repository.PingRedis(ctx, redisClient); err != nil {
		// Без Redis истории читаются напрямую из PostgreSQL
		log.Warn("Redis unavailable, story cache disabled", zap.Error(err))
	} else {
		artifacts = repository.NewCachedStoryArtifactRepository(artifacts, redisClient, cfg.StoryCacheTTL, log)
		log.Info("Story cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.StoryCacheTTL))
	}

	// --- Pipeline ---
	generationClient, err := service.NewGenerationClient(cfg, log)
	if err != nil {
		log.Fatal("Failed to create generation client", zap.Error(err))
	}

	events := telemetry.New(log.Named("Chronicle"))
	aggregator := chronicle.NewAggregator(
		repository.NewPgChapterRepository(pool, log),
		repository.NewPgAdventureRepository(pool, log),
		repository.NewPgQuestCompletionRepository(pool, log),
		repository.NewPgProfileRepository(pool, log),
		events,
	)
	notifier := chronicle.NewNotifier(
		repository.NewPgAuditRepository(pool, log),
		repository.NewPgJournalRepository(pool, log),
		events,
	)

	var opts []chronicle.Option
	if cfg.StorySerializePerChapter {
		opts = append(opts, chronicle.WithChapterLocker(chronicle.NewChapterLocker()))
	}
	generator := chronicle.NewStoryGenerator(
		auth.NewContextAuthenticator(),
		aggregator,
		artifacts,
		generationClient,
		notifier,
		events,
		chronicle.GeneratorConfig{
			Budget: chronicle.SceneBudget{
				Short:   cfg.StoryScenesShort,
				Default: cfg.StoryScenesDefault,
				Rich:    cfg.StoryScenesRich,
			},
			Truncation: chronicle.TruncationPolicy(strings.ToLower(cfg.StoryTruncation)),
		},
		opts...,
	)

	// --- RabbitMQ ---
	mqConn, err := messaging.Connect(cfg.RabbitMQURL, 5, 5*time.Second, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() { _ = mqConn.Close() }()

	consumer, err := startConsumer(ctx, mqConn, cfg, generator, log)
	if err != nil {
		log.Fatal("Failed to start task consumer", zap.Error(err))
	}

	// --- HTTP ---
	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPServerPort,
		Handler:      setupRouter(cfg, api.NewStoryHandler(generator, artifacts, verifier, log), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.HTTPServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Получен сигнал завершения, останавливаемся...")

	consumer.Stop(10 * time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	log.Info("Chronicler stopped")
}

func startConsumer(ctx context.Context, conn *amqp.Connection, cfg *config.Config, generator *chronicle.StoryGenerator, log *zap.Logger) (*messaging.TaskConsumer, error) {
	pubCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть канал публикации: %w", err)
	}
	publisher, err := messaging.NewRabbitMQPublisher(pubCh, cfg.StoryUpdatesQueue, log)
	if err != nil {
		return nil, err
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть канал задач: %w", err)
	}
	if err := messaging.DeclareTaskTopology(consumeCh, cfg.StoryTaskQueue); err != nil {
		return nil, err
	}

	handler := worker.NewTaskHandler(generator, publisher, cfg.AITimeout+30*time.Second, log)
	consumer := messaging.NewTaskConsumer(consumeCh, cfg.StoryTaskQueue, handler, log)
	if err := consumer.Start(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

func setupRouter(cfg *config.Config, handler *api.StoryHandler, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(api.ZapLoggingMiddleware(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.GetAllowedOrigins()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	handler.RegisterRoutes(router)

	// /metrics отдает и метрики gin, и метрики пайплайна из стандартного реестра
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)
	return router
}

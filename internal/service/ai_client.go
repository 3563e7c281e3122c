package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chronicle-server/internal/config"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chronicle_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"model"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chronicle_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool // true, если API не вернул usage и токены посчитаны локально
}

// GenerationRequest - один запрос структурированной генерации.
type GenerationRequest struct {
	UserID       string
	Instructions string          // Системный промт
	Payload      string          // JSON-контекст, уходит сообщением пользователя
	SchemaName   string          // Имя схемы ответа
	Schema       json.RawMessage // JSON Schema, которой должен соответствовать ответ
}

// GenerationResult - сырой ответ генерации.
type GenerationResult struct {
	Text     string
	Model    string
	Usage    UsageInfo
	Duration time.Duration
}

// GenerationClient выполняет ровно один вызов генерации без повторов.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	// ModelName возвращает модель, которой подписываются сохраненные истории.
	ModelName() string
}

// NewGenerationClient создает клиента по AI_CLIENT_TYPE.
func NewGenerationClient(cfg *config.Config, logger *zap.Logger) (GenerationClient, error) {
	httpClient := &http.Client{Timeout: cfg.AITimeout}
	temperature := float32(cfg.AITemperature)

	switch strings.ToLower(cfg.AIClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
		if cfg.AIBaseURL != "" {
			openaiConfig.BaseURL = cfg.AIBaseURL
		}
		openaiConfig.HTTPClient = httpClient
		logger.Info("OpenAI client created",
			zap.String("base_url", openaiConfig.BaseURL),
			zap.String("model", cfg.AIModel),
			zap.Duration("timeout", cfg.AITimeout),
		)
		return &openAIClient{
			client:      openaigo.NewClientWithConfig(openaiConfig),
			model:       cfg.AIModel,
			temperature: temperature,
			logger:      logger.Named("OpenAIClient"),
		}, nil
	case "ollama":
		return newOllamaClient(cfg, httpClient, logger)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.AIClientType)
	}
}

// --- OpenAI-совместимый клиент ---

type openAIClient struct {
	client      *openaigo.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

func (c *openAIClient) ModelName() string { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	log := c.logger.With(zap.String("userID", req.UserID), zap.String("model", c.model))

	if err := validateRequest(req); err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error_request").Inc()
		return nil, err
	}

	chatReq := openaigo.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: req.Instructions},
			{Role: openaigo.ChatMessageRoleUser, Content: req.Payload},
		},
		Temperature: c.temperature,
		ResponseFormat: &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		},
	}

	log.Debug("Sending AI request",
		zap.Int("instructions_bytes", len(req.Instructions)),
		zap.Int("payload_bytes", len(req.Payload)),
	)
	startTime := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(startTime)

	if err != nil {
		log.Error("AI API request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		log.Error("AI API returned empty response", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return nil, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	text := resp.Choices[0].Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = estimateUsage(c.model, req.Instructions+req.Payload, text)
	}

	modelName := c.model
	if resp.Model != "" {
		modelName = resp.Model
	}
	observeSuccess(c.model, duration, usage)
	log.Info("AI response received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(text)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Bool("usage_estimated", usage.Estimated),
	)
	return &GenerationResult{Text: text, Model: modelName, Usage: usage, Duration: duration}, nil
}

// --- Ollama клиент ---

type ollamaClient struct {
	client      *api.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

func newOllamaClient(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (GenerationClient, error) {
	ollamaBaseURL := strings.TrimSuffix(cfg.AIBaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	logger.Info("Ollama client created",
		zap.String("base_url", ollamaBaseURL),
		zap.String("model", cfg.AIModel),
		zap.Duration("timeout", cfg.AITimeout),
	)
	return &ollamaClient{
		client:      api.NewClient(parsedURL, httpClient),
		model:       cfg.AIModel,
		temperature: float32(cfg.AITemperature),
		logger:      logger.Named("OllamaClient"),
	}, nil
}

func (c *ollamaClient) ModelName() string { return c.model }

func (c *ollamaClient) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	log := c.logger.With(zap.String("userID", req.UserID), zap.String("model", c.model))

	if err := validateRequest(req); err != nil {
		aiRequestsTotal.WithLabelValues(c.model, "error_request").Inc()
		return nil, err
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "system", Content: req.Instructions},
			{Role: "user", Content: req.Payload},
		},
		Stream: &stream,
		Format: req.Schema,
		Options: map[string]interface{}{
			"temperature": c.temperature,
		},
	}

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Error("Ollama API request failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		log.Error("Ollama API returned empty response", zap.Duration("duration", duration))
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return nil, fmt.Errorf("%w: получен пустой ответ", ErrAIGenerationFailed)
	}

	text := resp.Message.Content
	usage := UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens == 0 {
		usage = estimateUsage(c.model, req.Instructions+req.Payload, text)
	}

	observeSuccess(c.model, duration, usage)
	log.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(text)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return &GenerationResult{Text: text, Model: c.model, Usage: usage, Duration: duration}, nil
}

// --- Общие помощники ---

func validateRequest(req GenerationRequest) error {
	if strings.TrimSpace(req.Instructions) == "" {
		return fmt.Errorf("%w: системный промт пуст", ErrAIGenerationFailed)
	}
	if len(req.Schema) == 0 || req.SchemaName == "" {
		return fmt.Errorf("%w: не задана схема ответа", ErrAIGenerationFailed)
	}
	return nil
}

func observeSuccess(model string, duration time.Duration, usage UsageInfo) {
	aiRequestsTotal.WithLabelValues(model, "success").Inc()
	aiRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(model).Observe(float64(usage.CompletionTokens))
	}
}

// estimateUsage считает токены локально, когда API не вернул usage.
// Для моделей, неизвестных tiktoken, используется cl100k_base.
func estimateUsage(model, prompt, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return UsageInfo{Estimated: true}
		}
	}
	promptTokens := len(tke.Encode(prompt, nil, nil))
	completionTokens := len(tke.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Estimated:        true,
	}
}

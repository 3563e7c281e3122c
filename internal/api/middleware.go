package api

import (
	"net/http"
	"strings"
	"time"

	"chronicle-server/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier проверяет JWT и возвращает идентификатор пользователя.
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

// ginUserIDKey - ключ gin.Context, дублирующий пользователя из context.Context.
const ginUserIDKey = "user_id"

// AuthMiddleware проверяет Bearer-токен и кладет пользователя в контекст запроса.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("Authorization header missing", zap.String("path", c.Request.URL.Path))
			abortWithError(c, http.StatusUnauthorized, "authorization token is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			logger.Warn("Invalid Authorization header format")
			abortWithError(c, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		userID, err := verifier.VerifyToken(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Warn("Access token verification failed", zap.Error(err))
			abortWithError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ginUserIDKey, userID)
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// ZapLoggingMiddleware логирует запросы, кроме /health и /metrics.
func ZapLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		}
		if userID := c.GetString(ginUserIDKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		for _, ginErr := range c.Errors.ByType(gin.ErrorTypeAny) {
			fields = append(fields, zap.NamedError("handler_error", ginErr.Err))
		}

		status := c.Writer.Status()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

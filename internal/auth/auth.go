package auth

import (
	"context"
	"strings"

	"chronicle-server/internal/models"
)

// contextKey - приватный тип для ключей контекста, чтобы избежать коллизий.
type contextKey string

const userContextKey contextKey = "userID"

// Authenticator выдает идентификатор текущего пользователя или models.ErrAuth.
type Authenticator interface {
	UserID(ctx context.Context) (string, error)
}

// WithUserID кладет идентификатор пользователя в контекст.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserIDFromContext извлекает идентификатор пользователя из контекста.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userContextKey).(string)
	return userID, ok && strings.TrimSpace(userID) != ""
}

// ContextAuthenticator читает пользователя, которого положил в контекст
// JWT middleware или обработчик очереди задач.
type ContextAuthenticator struct{}

// NewContextAuthenticator создает ContextAuthenticator.
func NewContextAuthenticator() ContextAuthenticator {
	return ContextAuthenticator{}
}

func (ContextAuthenticator) UserID(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", models.ErrAuth
	}
	return userID, nil
}

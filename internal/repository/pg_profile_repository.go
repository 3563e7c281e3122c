package repository

import (
	"context"
	"errors"
	"fmt"

	"chronicle-server/internal/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var _ ProfileRepository = (*pgProfileRepository)(nil)

const getProfileByUserIDQuery = `
SELECT user_id, display_name,
       persona_name, persona_emoji, persona_archetype, persona_tone, persona_verbosity, persona_signature_phrase
FROM player_profiles
WHERE user_id = $1`

type pgProfileRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgProfileRepository создает репозиторий профилей игроков.
func NewPgProfileRepository(db DBTX, logger *zap.Logger) ProfileRepository {
	return &pgProfileRepository{db: db, logger: logger.Named("PgProfileRepo")}
}

func (r *pgProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.StyleProfile, error) {
	var p models.StyleProfile
	err := r.db.QueryRow(ctx, getProfileByUserIDQuery, userID).Scan(
		&p.UserID,
		&p.DisplayName,
		&p.Persona.Name,
		&p.Persona.Emoji,
		&p.Persona.Archetype,
		&p.Persona.Tone,
		&p.Persona.Verbosity,
		&p.Persona.SignaturePhrase,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get player profile", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения профиля игрока %s: %w", userID, err)
	}
	return &p, nil
}

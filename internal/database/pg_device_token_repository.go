package database

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgDeviceTokenRepository implements DeviceTokenRepository
var _ interfaces.DeviceTokenRepository = (*pgDeviceTokenRepository)(nil)

type pgDeviceTokenRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgDeviceTokenRepository creates a new PostgreSQL-backed DeviceTokenRepository.
func NewPgDeviceTokenRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.DeviceTokenRepository {
	return &pgDeviceTokenRepository{
		db:     db,
		logger: logger.Named("PgDeviceTokenRepo"),
	}
}

// Upsert re-registers a token for its current user. A token re-used on a
// device that switched accounts moves to the new user.
func (r *pgDeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	query := `INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, token.UserID, token.Token, token.Platform).
		Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert device token", zap.Error(err), zap.String("userID", token.UserID.String()))
		return fmt.Errorf("failed to upsert device token: %w", err)
	}
	return nil
}

func (r *pgDeviceTokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	query := `SELECT id, user_id, token, platform, created_at FROM device_tokens WHERE user_id = $1`
	if err := pgxscan.Select(ctx, r.db, &tokens, query, userID); err != nil {
		r.logger.Error("Failed to list device tokens", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	return tokens, nil
}

func (r *pgDeviceTokenRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		r.logger.Error("Failed to delete device token", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}

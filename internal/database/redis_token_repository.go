package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure redisTokenRepository implements TokenRepository
var _ interfaces.TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a Redis-backed TokenRepository. Token UUIDs
// are stored with TTL equal to the token lifetime; lookups against an absent
// key mean the token was revoked or expired.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) interfaces.TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

func accessKey(accessUUID string) string   { return "access_token:" + accessUUID }
func refreshKey(refreshUUID string) string { return "refresh_token:" + refreshUUID }
func userTokensKey(userID uuid.UUID) string {
	return "user_tokens:" + userID.String()
}

// SetToken stores both token UUIDs and registers them in the per-user set so
// DeleteAllForUser can revoke every session at once.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	now := time.Now()
	atTTL := time.Unix(td.AtExpires, 0).Sub(now)
	rtTTL := time.Unix(td.RtExpires, 0).Sub(now)
	if atTTL <= 0 || rtTTL <= 0 {
		return fmt.Errorf("token details already expired")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, accessKey(td.AccessUUID), userID.String(), atTTL)
	pipe.Set(ctx, refreshKey(td.RefreshUUID), userID.String(), rtTTL)
	pipe.SAdd(ctx, userTokensKey(userID), accessKey(td.AccessUUID), refreshKey(td.RefreshUUID))
	pipe.Expire(ctx, userTokensKey(userID), rtTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to store token details", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to store token details: %w", err)
	}
	return nil
}

func (r *redisTokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, accessKey(accessUUID))
}

func (r *redisTokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, refreshKey(refreshUUID))
}

func (r *redisTokenRepository) getUserID(ctx context.Context, key string) (uuid.UUID, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrTokenNotFound
		}
		r.logger.Error("Failed to look up token", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to look up token: %w", err)
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt token entry: %w", err)
	}
	return userID, nil
}

// DeleteTokens revokes a single session (one access/refresh pair).
func (r *redisTokenRepository) DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, accessKey(accessUUID), refreshKey(refreshUUID))
	pipe.SRem(ctx, userTokensKey(userID), accessKey(accessUUID), refreshKey(refreshUUID))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete tokens", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	return nil
}

// DeleteAllForUser revokes every outstanding session of a user, used on ban.
func (r *redisTokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	keys, err := r.client.SMembers(ctx, userTokensKey(userID)).Result()
	if err != nil {
		r.logger.Error("Failed to list user token keys", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to list user token keys: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("failed to delete user tokens: %w", err)
		}
	}
	return r.client.Del(ctx, userTokensKey(userID)).Err()
}

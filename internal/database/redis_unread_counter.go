package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
)

// Compile-time check to ensure redisUnreadCounter implements UnreadCounter
var _ interfaces.UnreadCounter = (*redisUnreadCounter)(nil)

type redisUnreadCounter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisUnreadCounter creates a Redis-backed unread notification counter.
// The notifications table remains the source of truth; the counter is a
// cache that Set re-synchronizes from the table on mark-read operations.
func NewRedisUnreadCounter(client *redis.Client, logger *zap.Logger) interfaces.UnreadCounter {
	return &redisUnreadCounter{
		client: client,
		logger: logger.Named("RedisUnreadCounter"),
	}
}

func unreadKey(userID uuid.UUID) string { return "unread_count:" + userID.String() }

func (c *redisUnreadCounter) Increment(ctx context.Context, userID uuid.UUID) (int64, error) {
	val, err := c.client.Incr(ctx, unreadKey(userID)).Result()
	if err != nil {
		c.logger.Error("Failed to increment unread counter", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to increment unread counter: %w", err)
	}
	return val, nil
}

func (c *redisUnreadCounter) Set(ctx context.Context, userID uuid.UUID, value int64) error {
	if err := c.client.Set(ctx, unreadKey(userID), value, 0).Err(); err != nil {
		c.logger.Error("Failed to set unread counter", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to set unread counter: %w", err)
	}
	return nil
}

func (c *redisUnreadCounter) Get(ctx context.Context, userID uuid.UUID) (int64, error) {
	val, err := c.client.Get(ctx, unreadKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		c.logger.Error("Failed to get unread counter", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to get unread counter: %w", err)
	}
	return val, nil
}

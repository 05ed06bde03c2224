package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
)

// Compile-time check to ensure redisRateLimitStore implements RateLimitStore
var _ interfaces.RateLimitStore = (*redisRateLimitStore)(nil)

type redisRateLimitStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRateLimitStore creates the Redis backend for the fixed-window
// rate limiter middleware.
func NewRedisRateLimitStore(client *redis.Client, logger *zap.Logger) interfaces.RateLimitStore {
	return &redisRateLimitStore{
		client: client,
		logger: logger.Named("RedisRateLimitStore"),
	}
}

// IncrementWindow bumps the window counter; the TTL is attached on the first
// increment of the window so the key expires with the window itself.
func (s *redisRateLimitStore) IncrementWindow(ctx context.Context, key string, windowSeconds int) (int64, error) {
	windowKey := "rate-limit:" + key
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.ExpireNX(ctx, windowKey, time.Duration(windowSeconds)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to increment rate limit window", zap.Error(err), zap.String("key", key))
		return 0, fmt.Errorf("failed to increment rate limit window: %w", err)
	}
	return incr.Val(), nil
}

func (s *redisRateLimitStore) IsBlocked(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, "blocked:"+key).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		s.logger.Error("Failed to check rate limit block", zap.Error(err), zap.String("key", key))
		return false, fmt.Errorf("failed to check rate limit block: %w", err)
	}
	return true, nil
}

func (s *redisRateLimitStore) Block(ctx context.Context, key string, blockSeconds int) error {
	err := s.client.Set(ctx, "blocked:"+key, 1, time.Duration(blockSeconds)*time.Second).Err()
	if err != nil {
		s.logger.Error("Failed to set rate limit block", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to set rate limit block: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
)

// Compile-time check to ensure redisRoomRepository implements RoomRepository
var _ interfaces.RoomRepository = (*redisRoomRepository)(nil)

type redisRoomRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRoomRepository creates a Redis-backed RoomRepository. Membership
// lives in Redis sets so that presence survives server restarts and is
// shared between instances.
func NewRedisRoomRepository(client *redis.Client, logger *zap.Logger) interfaces.RoomRepository {
	return &redisRoomRepository{
		client: client,
		logger: logger.Named("RedisRoomRepo"),
	}
}

func roomKey(roomID string) string            { return "room:" + roomID + ":members" }
func userSocketsKey(userID uuid.UUID) string  { return "user:" + userID.String() + ":sockets" }

func (r *redisRoomRepository) AddToRoom(ctx context.Context, roomID string, userID uuid.UUID) error {
	if err := r.client.SAdd(ctx, roomKey(roomID), userID.String()).Err(); err != nil {
		r.logger.Error("Failed to add user to room", zap.Error(err), zap.String("roomID", roomID))
		return fmt.Errorf("failed to add user to room: %w", err)
	}
	return nil
}

func (r *redisRoomRepository) RemoveFromRoom(ctx context.Context, roomID string, userID uuid.UUID) error {
	if err := r.client.SRem(ctx, roomKey(roomID), userID.String()).Err(); err != nil {
		r.logger.Error("Failed to remove user from room", zap.Error(err), zap.String("roomID", roomID))
		return fmt.Errorf("failed to remove user from room: %w", err)
	}
	return nil
}

func (r *redisRoomRepository) RoomMembers(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	raw, err := r.client.SMembers(ctx, roomKey(roomID)).Result()
	if err != nil {
		r.logger.Error("Failed to list room members", zap.Error(err), zap.String("roomID", roomID))
		return nil, fmt.Errorf("failed to list room members: %w", err)
	}
	members := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			// Чужой или испорченный элемент множества, пропускаем
			r.logger.Warn("Skipping malformed room member", zap.String("roomID", roomID), zap.String("value", s))
			continue
		}
		members = append(members, id)
	}
	return members, nil
}

func (r *redisRoomRepository) AddSocket(ctx context.Context, userID uuid.UUID, socketID string) error {
	if err := r.client.SAdd(ctx, userSocketsKey(userID), socketID).Err(); err != nil {
		r.logger.Error("Failed to register socket", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to register socket: %w", err)
	}
	return nil
}

func (r *redisRoomRepository) RemoveSocket(ctx context.Context, userID uuid.UUID, socketID string) error {
	if err := r.client.SRem(ctx, userSocketsKey(userID), socketID).Err(); err != nil {
		r.logger.Error("Failed to deregister socket", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to deregister socket: %w", err)
	}
	return nil
}

package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// TxRunner вызывает fn с nil-транзакцией, чтобы unit-тесты сервисов
// не требовали реальной БД.
type TxRunner struct {
	mock.Mock
}

func (m *TxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(nil)
}

// Mock RoomRepository
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) AddToRoom(ctx context.Context, roomID string, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}
func (m *RoomRepository) RemoveFromRoom(ctx context.Context, roomID string, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}
func (m *RoomRepository) RoomMembers(ctx context.Context, roomID string) ([]uuid.UUID, error) {
	args := m.Called(ctx, roomID)
	members, _ := args.Get(0).([]uuid.UUID)
	return members, args.Error(1)
}
func (m *RoomRepository) AddSocket(ctx context.Context, userID uuid.UUID, socketID string) error {
	args := m.Called(ctx, userID, socketID)
	return args.Error(0)
}
func (m *RoomRepository) RemoveSocket(ctx context.Context, userID uuid.UUID, socketID string) error {
	args := m.Called(ctx, userID, socketID)
	return args.Error(0)
}

// Mock RoomBroadcaster
type RoomBroadcaster struct {
	mock.Mock
}

func (m *RoomBroadcaster) BroadcastToStory(storyID uuid.UUID, eventType string, payload any) {
	m.Called(storyID, eventType, payload)
}
func (m *RoomBroadcaster) SendToUser(userID uuid.UUID, eventType string, payload any) {
	m.Called(userID, eventType, payload)
}

// Mock UnreadCounter
type UnreadCounter struct {
	mock.Mock
}

func (m *UnreadCounter) Increment(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *UnreadCounter) Set(ctx context.Context, userID uuid.UUID, value int64) error {
	args := m.Called(ctx, userID, value)
	return args.Error(0)
}
func (m *UnreadCounter) Get(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// Mock RateLimitStore
type RateLimitStore struct {
	mock.Mock
}

func (m *RateLimitStore) IncrementWindow(ctx context.Context, key string, windowSeconds int) (int64, error) {
	args := m.Called(ctx, key, windowSeconds)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RateLimitStore) IsBlocked(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
func (m *RateLimitStore) Block(ctx context.Context, key string, blockSeconds int) error {
	args := m.Called(ctx, key, blockSeconds)
	return args.Error(0)
}

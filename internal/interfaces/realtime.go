package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// RoomRepository хранит членство в комнатах и сокеты пользователей
// во внешнем хранилище (Redis), чтобы оно переживало рестарты и было
// общим для нескольких инстансов сервера. Добавление и удаление
// идемпотентны, поэтому дополнительных блокировок не требуется.
type RoomRepository interface {
	AddToRoom(ctx context.Context, roomID string, userID uuid.UUID) error
	RemoveFromRoom(ctx context.Context, roomID string, userID uuid.UUID) error
	RoomMembers(ctx context.Context, roomID string) ([]uuid.UUID, error)
	AddSocket(ctx context.Context, userID uuid.UUID, socketID string) error
	RemoveSocket(ctx context.Context, userID uuid.UUID, socketID string) error
}

// RoomBroadcaster рассылает события подключенным клиентам.
// Реализуется WebSocket-хабом; сервисы зависят только от интерфейса.
type RoomBroadcaster interface {
	BroadcastToStory(storyID uuid.UUID, eventType string, payload any)
	SendToUser(userID uuid.UUID, eventType string, payload any)
}

// UnreadCounter - быстрый счетчик непрочитанных уведомлений (Redis).
// Персистентным источником истины остается таблица notifications.
type UnreadCounter interface {
	Increment(ctx context.Context, userID uuid.UUID) (int64, error)
	Set(ctx context.Context, userID uuid.UUID, value int64) error
	Get(ctx context.Context, userID uuid.UUID) (int64, error)
}

// RateLimitStore - бэкенд лимитера запросов с фиксированным окном
// и отдельным ключом блокировки.
type RateLimitStore interface {
	// IncrementWindow увеличивает счетчик окна и возвращает новое значение.
	// TTL ключа равен длительности окна и выставляется при первом инкременте.
	IncrementWindow(ctx context.Context, key string, windowSeconds int) (int64, error)
	IsBlocked(ctx context.Context, key string) (bool, error)
	Block(ctx context.Context, key string, blockSeconds int) error
}

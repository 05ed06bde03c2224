package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Типы WebSocket событий. Клиентские события приходят в namespace /ws/story
// и /ws/notifications, серверные рассылаются в комнаты историй или
// в персональную комнату пользователя.
const (
	// Клиент -> сервер
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventChatMessage = "chat_message"
	EventTypingStart = "typing_start"
	EventTypingEnd   = "typing_end"
	EventRequestTurn = "request_turn"
	EventReleaseTurn = "release_turn"
	EventMarkRead    = "mark_read"
	EventMarkAllRead = "mark_all_read"

	// Сервер -> клиент
	EventContentUpdate   = "content_update"
	EventBranchResolved  = "branch_resolved"
	EventGrantTurn       = "grant_turn"
	EventNewNotification = "new_notification"
	EventUnreadCount     = "unread_count"
	EventMediaReady      = "media_ready"
	EventError           = "error"
)

// ErrorPayload отправляется клиенту при ошибке обработки его события.
type ErrorPayload struct {
	Message string `json:"message"`
}

// WSMessage - конверт WebSocket сообщения в обе стороны.
type WSMessage struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ContentUpdatePayload рассылается в комнату истории при добавлении сегмента.
type ContentUpdatePayload struct {
	StoryID uuid.UUID    `json:"story_id"`
	Segment StorySegment `json:"segment"`
}

// BranchResolvedPayload - надмножество ContentUpdatePayload для события
// разрешения точки ветвления.
type BranchResolvedPayload struct {
	StoryID           uuid.UUID    `json:"story_id"`
	BranchPointID     uuid.UUID    `json:"branch_point_id"`
	SelectedOptionID  uuid.UUID    `json:"selected_option_id"`
	NewSegmentID      uuid.UUID    `json:"new_segment_id"`
	NewSegmentContent string       `json:"new_segment_content"`
	Segment           StorySegment `json:"segment"`
}

// GrantTurnPayload сообщает комнате, чей теперь ход.
type GrantTurnPayload struct {
	StoryID uuid.UUID `json:"story_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// ChatMessagePayload - сообщение чата в комнате истории.
type ChatMessagePayload struct {
	StoryID  uuid.UUID `json:"story_id"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Text     string    `json:"text"`
}

// TypingPayload - индикатор набора текста.
type TypingPayload struct {
	StoryID uuid.UUID `json:"story_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// MediaReadyPayload рассылается, когда ассет сгенерирован.
type MediaReadyPayload struct {
	StoryID uuid.UUID  `json:"story_id"`
	Asset   MediaAsset `json:"asset"`
}

// UnreadCountPayload - актуальный счетчик непрочитанных уведомлений.
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

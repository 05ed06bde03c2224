package messaging

import "github.com/google/uuid"

// MediaTaskPayload - задача генерации медиа для воркера.
// AssetID указывает на заранее созданную строку media_assets в статусе pending;
// обработчик воркера идемпотентен по этому ID.
type MediaTaskPayload struct {
	AssetID   uuid.UUID  `json:"asset_id"`
	StoryID   uuid.UUID  `json:"story_id"`
	SegmentID *uuid.UUID `json:"segment_id,omitempty"`
	Kind      string     `json:"kind"` // image | audio
	Prompt    string     `json:"prompt"`
}

// MediaResultPayload - результат генерации, публикуемый воркером.
type MediaResultPayload struct {
	AssetID  uuid.UUID `json:"asset_id"`
	StoryID  uuid.UUID `json:"story_id"`
	Success  bool      `json:"success"`
	URL      string    `json:"url,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// PushPayload - запрос на отправку push-уведомления.
type PushPayload struct {
	UserID uuid.UUID         `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

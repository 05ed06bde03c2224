package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaKind - тип генерируемого медиа.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindAudio MediaKind = "audio"
)

// MediaAssetStatus - статус задачи генерации медиа.
// pending -> generating -> ready | failed.
type MediaAssetStatus string

const (
	MediaStatusPending    MediaAssetStatus = "pending"
	MediaStatusGenerating MediaAssetStatus = "generating"
	MediaStatusReady      MediaAssetStatus = "ready"
	MediaStatusFailed     MediaAssetStatus = "failed"
)

// MediaAsset представляет сгенерированное (или генерируемое) медиа для истории.
// Строка создается со статусом pending до отправки задачи воркеру; обработчик
// воркера идемпотентен по ID ассета, поэтому повторная доставка сообщения
// для готового ассета становится no-op.
type MediaAsset struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	StoryID      uuid.UUID        `json:"story_id" db:"story_id"`
	SegmentID    *uuid.UUID       `json:"segment_id,omitempty" db:"segment_id"`
	Kind         MediaKind        `json:"kind" db:"kind"`
	Status       MediaAssetStatus `json:"status" db:"status"`
	URL          *string          `json:"url,omitempty" db:"url"`
	Provider     *string          `json:"provider,omitempty" db:"provider"`
	Prompt       string           `json:"prompt" db:"prompt"`
	ErrorDetails *string          `json:"error_details,omitempty" db:"error_details"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryCharacter - персонаж истории, часть "памяти", из которой строится
// контекст для AI. Имя уникально в рамках истории.
type StoryCharacter struct {
	ID          uuid.UUID `json:"id" db:"id"`
	StoryID     uuid.UUID `json:"story_id" db:"story_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Traits      []string  `json:"traits" db:"traits"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// StoryPlotPoint - зафиксированное сюжетное событие.
// Поле sequence монотонно растет в рамках истории и задает порядок событий.
type StoryPlotPoint struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	StoryID   uuid.UUID  `json:"story_id" db:"story_id"`
	SegmentID *uuid.UUID `json:"segment_id,omitempty" db:"segment_id"` // Сегмент, породивший запись
	Sequence  int        `json:"sequence" db:"sequence"`
	Summary   string     `json:"summary" db:"summary"`
	Keyword   *string    `json:"keyword,omitempty" db:"keyword"` // Ключевое слово или имя персонажа, вызвавшее запись
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

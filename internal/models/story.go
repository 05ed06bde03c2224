package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryStatus определяет жизненный цикл истории.
// Совпадает с типом ENUM 'story_status' в БД.
type StoryStatus string

const (
	StoryStatusDraft           StoryStatus = "draft"            // Черновик, виден только коллаборантам
	StoryStatusInProgress      StoryStatus = "in_progress"      // Идет совместное написание
	StoryStatusCompleted       StoryStatus = "completed"        // Завершена, сегменты больше не добавляются
	StoryStatusArchived        StoryStatus = "archived"         // В архиве, только чтение
	StoryStatusPendingApproval StoryStatus = "pending_approval" // Ожидает проверки модератором перед публикацией
	StoryStatusPublished       StoryStatus = "published"        // Опубликована в общем каталоге
)

// IsWritable сообщает, можно ли добавлять сегменты в историю с данным статусом.
func (s StoryStatus) IsWritable() bool {
	return s != StoryStatusCompleted && s != StoryStatusArchived
}

// Story представляет совместную историю в базе данных.
type Story struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	Title             string        `json:"title" db:"title"`
	Description       *string       `json:"description,omitempty" db:"description"` // Указатель, так как может быть NULL
	CreatorID         uuid.UUID     `json:"creator_id" db:"creator_id"`
	Status            StoryStatus   `json:"status" db:"status"`
	AgeTier           AgeTier       `json:"age_tier" db:"age_tier"`
	IsPrivate         bool          `json:"is_private" db:"is_private"`
	AllowCollab       bool          `json:"allow_collaboration" db:"allow_collaboration"`
	Settings          StorySettings `json:"settings" db:"settings"`
	CurrentTurnUserID *uuid.UUID    `json:"current_turn_user_id,omitempty" db:"current_turn_user_id"` // NULL, пока ход никому не передан
	GenreIDs          []string      `json:"genre_ids" db:"genre_ids"`
	ContentWarnings   []string      `json:"content_warnings" db:"content_warnings"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// StorySegment - один упорядоченный фрагмент текста истории.
// Инвариант: позиции внутри истории плотные, от 0 до N-1, без дубликатов.
type StorySegment struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	StoryID              uuid.UUID  `json:"story_id" db:"story_id"`
	CreatorID            uuid.UUID  `json:"creator_id" db:"creator_id"`
	Content              string     `json:"content" db:"content"`
	Position             int        `json:"position" db:"position"`
	IsAIGenerated        bool       `json:"is_ai_generated" db:"is_ai_generated"`
	ParentChoiceOptionID *uuid.UUID `json:"parent_choice_option_id,omitempty" db:"parent_choice_option_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

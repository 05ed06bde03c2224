package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryBranchPoint - точка выбора, привязанная к одному сегменту истории.
// На сегмент допускается не более одной точки ветвления; уникальность
// обеспечивается индексом БД по source_segment_id, а не проверкой перед вставкой.
// Жизненный цикл: Open (resolved_at IS NULL) -> Resolved (неизменяема).
type StoryBranchPoint struct {
	ID               uuid.UUID           `json:"id" db:"id"`
	StoryID          uuid.UUID           `json:"story_id" db:"story_id"`
	SourceSegmentID  uuid.UUID           `json:"source_segment_id" db:"source_segment_id"`
	PromptText       *string             `json:"prompt_text,omitempty" db:"prompt_text"`
	SelectedOptionID *uuid.UUID          `json:"selected_option_id,omitempty" db:"selected_option_id"`
	ResolvedAt       *time.Time          `json:"resolved_at,omitempty" db:"resolved_at"` // NULL означает "выбор еще не сделан"
	Options          []StoryChoiceOption `json:"options" db:"-"`                         // Загружаются отдельным запросом
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`
}

// Resolved сообщает, был ли выбор уже сделан.
func (bp *StoryBranchPoint) Resolved() bool {
	return bp.ResolvedAt != nil
}

// StoryChoiceOption - один вариант выбора в точке ветвления.
type StoryChoiceOption struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	BranchPointID   uuid.UUID  `json:"branch_point_id" db:"branch_point_id"`
	OptionText      string     `json:"option_text" db:"option_text"`
	DisplayOrder    int        `json:"display_order" db:"display_order"`
	TargetSegmentID *uuid.UUID `json:"target_segment_id,omitempty" db:"target_segment_id"` // Заполняется при разрешении ветки
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

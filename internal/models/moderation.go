package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportStatus - статус жалобы на контент.
// Допустимые переходы: pending -> reviewing -> resolved | dismissed.
// Терминальные статусы неизменяемы.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusReviewing ReportStatus = "reviewing"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// ReportStatusTransitionAllowed проверяет допустимость перехода статуса жалобы.
func ReportStatusTransitionAllowed(from, to ReportStatus) bool {
	switch from {
	case ReportStatusPending:
		return to == ReportStatusReviewing || to == ReportStatusResolved || to == ReportStatusDismissed
	case ReportStatusReviewing:
		return to == ReportStatusResolved || to == ReportStatusDismissed
	}
	return false
}

// ContentReport - жалоба пользователя на историю или отдельный сегмент.
type ContentReport struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	ReporterID uuid.UUID    `json:"reporter_id" db:"reporter_id"`
	StoryID    *uuid.UUID   `json:"story_id,omitempty" db:"story_id"`
	SegmentID  *uuid.UUID   `json:"segment_id,omitempty" db:"segment_id"`
	Reason     string       `json:"reason" db:"reason"`
	Details    *string      `json:"details,omitempty" db:"details"`
	Status     ReportStatus `json:"status" db:"status"`
	ReviewerID *uuid.UUID   `json:"reviewer_id,omitempty" db:"reviewer_id"`
	Resolution *string      `json:"resolution,omitempty" db:"resolution"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ParentalLinkStatus - статус связи родитель-ребенок.
type ParentalLinkStatus string

const (
	ParentalLinkPending ParentalLinkStatus = "pending"
	ParentalLinkActive  ParentalLinkStatus = "active"
	ParentalLinkRevoked ParentalLinkStatus = "revoked"
)

// ParentalLink связывает аккаунт родителя с аккаунтом ребенка.
// Пара (parent_user_id, child_user_id) уникальна на уровне БД.
// Активная связь дает родителю право просматривать истории ребенка
// и подтверждать его заявки на возрастную категорию.
type ParentalLink struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	ParentUserID uuid.UUID          `json:"parent_user_id" db:"parent_user_id"`
	ChildUserID  uuid.UUID          `json:"child_user_id" db:"child_user_id"`
	Status       ParentalLinkStatus `json:"status" db:"status"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

// VerificationStatus - статус заявки на подтверждение возрастной категории.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// VerificationMethod - способ подтверждения возраста.
type VerificationMethod string

const (
	VerificationMethodParent   VerificationMethod = "parental_consent" // Подтверждает родитель по активной связи
	VerificationMethodDocument VerificationMethod = "document"         // Проверяет модератор по документам
)

// AgeVerificationRequest - заявка пользователя на повышение возрастной категории.
// Одобрение заявки обновляет users.verified_age_tier.
type AgeVerificationRequest struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	UserID        uuid.UUID          `json:"user_id" db:"user_id"`
	RequestedTier AgeTier            `json:"requested_tier" db:"requested_tier"`
	Method        VerificationMethod `json:"method" db:"method"`
	Status        VerificationStatus `json:"status" db:"status"`
	ReviewerID    *uuid.UUID         `json:"reviewer_id,omitempty" db:"reviewer_id"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// CollaboratorRole определяет роль пользователя в рамках одной истории.
// Роли плоские: проверки делаются по множеству допустимых ролей, без иерархии.
type CollaboratorRole string

const (
	RoleOwner       CollaboratorRole = "owner"       // Создатель истории; ровно один на историю, роль неизменяема
	RoleEditor      CollaboratorRole = "editor"      // Может писать сегменты и редактировать параметры истории
	RoleContributor CollaboratorRole = "contributor" // Может писать сегменты
	RoleAuthor      CollaboratorRole = "author"      // Приглашенный автор: пишет сегменты, не управляет историей
	RoleReader      CollaboratorRole = "reader"      // Только чтение
)

// ValidCollaboratorRole проверяет, что строка является известной ролью.
func ValidCollaboratorRole(r CollaboratorRole) bool {
	switch r {
	case RoleOwner, RoleEditor, RoleContributor, RoleAuthor, RoleReader:
		return true
	}
	return false
}

// StoryCollaborator связывает пользователя с историей.
// Пара (story_id, user_id) уникальна на уровне БД.
type StoryCollaborator struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	StoryID            uuid.UUID        `json:"story_id" db:"story_id"`
	UserID             uuid.UUID        `json:"user_id" db:"user_id"`
	Role               CollaboratorRole `json:"role" db:"role"`
	InvitationAccepted bool             `json:"invitation_accepted" db:"invitation_accepted"`
	ContributionCount  int              `json:"contribution_count" db:"contribution_count"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"` // Порядок присоединения определяет очередность ходов
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

// Capability - атомарное право на операцию с историей.
// Все мутирующие пути сервисов сверяются с набором прав,
// а не с собственными списками допустимых ролей.
type Capability string

const (
	CapRead                Capability = "read"
	CapWriteSegment        Capability = "write_segment"
	CapResolveBranch       Capability = "resolve_branch"
	CapManageStory         Capability = "manage_story"
	CapManageCollaborators Capability = "manage_collaborators"
)

// CapabilitySet - набор прав пользователя в рамках одной истории.
type CapabilitySet map[Capability]struct{}

// Has проверяет наличие права в наборе.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// CapabilitiesForRole возвращает набор прав, соответствующий роли коллаборанта.
func CapabilitiesForRole(role CollaboratorRole) CapabilitySet {
	set := CapabilitySet{CapRead: {}}
	switch role {
	case RoleOwner:
		set[CapWriteSegment] = struct{}{}
		set[CapResolveBranch] = struct{}{}
		set[CapManageStory] = struct{}{}
		set[CapManageCollaborators] = struct{}{}
	case RoleEditor:
		set[CapWriteSegment] = struct{}{}
		set[CapResolveBranch] = struct{}{}
		set[CapManageStory] = struct{}{}
	case RoleContributor, RoleAuthor:
		set[CapWriteSegment] = struct{}{}
		set[CapResolveBranch] = struct{}{}
	case RoleReader:
		// только чтение
	}
	return set
}

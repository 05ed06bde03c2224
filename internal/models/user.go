package models

import (
	"time"

	"github.com/google/uuid"
)

// AgeTier - упорядоченная возрастная категория пользователя или истории.
// Порядок важен: unverified < kids < teens < adults. Это единственное место,
// где авторизация опирается на порядок, а не на принадлежность множеству.
type AgeTier string

const (
	AgeTierUnverified AgeTier = "unverified"
	AgeTierKids       AgeTier = "kids"
	AgeTierTeens      AgeTier = "teens"
	AgeTierAdults     AgeTier = "adults"
)

// ageTierOrder задает позицию категории в иерархии.
var ageTierOrder = map[AgeTier]int{
	AgeTierUnverified: 0,
	AgeTierKids:       1,
	AgeTierTeens:      2,
	AgeTierAdults:     3,
}

// ValidAgeTier проверяет, что строка является известной возрастной категорией.
func ValidAgeTier(t AgeTier) bool {
	_, ok := ageTierOrder[t]
	return ok
}

// IsAgeTierSufficient сообщает, достаточно ли подтвержденной категории have
// для доступа к контенту категории required.
func IsAgeTierSufficient(have, required AgeTier) bool {
	h, okH := ageTierOrder[have]
	r, okR := ageTierOrder[required]
	if !okH || !okR {
		return false
	}
	return h >= r
}

// Глобальные роли пользователя (не путать с ролями коллаборанта в истории).
const (
	UserRoleUser       = "user"
	UserRoleModerator  = "moderator"
	UserRoleAdmin      = "admin"
	UserRoleSuperAdmin = "super_admin"
)

// User представляет пользователя платформы.
type User struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Username        string    `json:"username" db:"username"`
	Email           string    `json:"email" db:"email"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	Roles           []string  `json:"roles" db:"roles"`
	CurrentAgeTier  AgeTier   `json:"current_age_tier" db:"current_age_tier"`
	VerifiedAgeTier AgeTier   `json:"verified_age_tier" db:"verified_age_tier"`
	IsBanned        bool      `json:"is_banned" db:"is_banned"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole проверяет наличие глобальной роли у пользователя.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsModerator сообщает, обладает ли пользователь модераторскими правами.
func (u *User) IsModerator() bool {
	return HasRole(u.Roles, UserRoleModerator) || HasRole(u.Roles, UserRoleAdmin) || HasRole(u.Roles, UserRoleSuperAdmin)
}

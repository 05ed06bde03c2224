package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType - тип уведомления для клиента.
type NotificationType string

const (
	NotificationTypeInvitation    NotificationType = "collaboration_invitation"
	NotificationTypeTurnGranted   NotificationType = "turn_granted"
	NotificationTypeContentUpdate NotificationType = "content_update"
	NotificationTypeMediaReady    NotificationType = "media_ready"
	NotificationTypeModeration    NotificationType = "moderation"
	NotificationTypeParental      NotificationType = "parental"
)

// Notification - персистентное уведомление пользователя.
// Счетчик непрочитанных дублируется в Redis для быстрой выдачи по WebSocket.
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Body      string           `json:"body" db:"body"`
	Data      json.RawMessage  `json:"data,omitempty" db:"data"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// DevicePlatform - платформа устройства для push-уведомлений.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
)

// DeviceToken - push-токен устройства пользователя.
type DeviceToken struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Token     string         `json:"token" db:"token"`
	Platform  DevicePlatform `json:"platform" db:"platform"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

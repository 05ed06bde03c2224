package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// NotificationService создает и доставляет уведомления: строка в БД,
// счетчик в Redis, событие в WebSocket и push на устройства.
// Методы Notify* не возвращают ошибок: доставка уведомлений никогда
// не должна ронять основную операцию.
type NotificationService interface {
	NotifyInvitation(ctx context.Context, story *models.Story, inviteeID uuid.UUID, role models.CollaboratorRole)
	NotifyTurnGranted(ctx context.Context, story *models.Story, userID uuid.UUID)
	NotifyStoryPublished(ctx context.Context, story *models.Story)
	NotifyMediaReady(ctx context.Context, asset *models.MediaAsset, recipients []uuid.UUID)
	NotifyModeration(ctx context.Context, userID uuid.UUID, title, body string)
	NotifyParental(ctx context.Context, userID uuid.UUID, title, body string)

	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)

	RegisterDevice(ctx context.Context, userID uuid.UUID, token string, platform models.DevicePlatform) error
	UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error
}

type notificationServiceImpl struct {
	notificationRepo interfaces.NotificationRepository
	deviceTokenRepo  interfaces.DeviceTokenRepository
	unreadCounter    interfaces.UnreadCounter
	broadcaster      interfaces.RoomBroadcaster
	fcmSender        PlatformSender // nil, если FCM не настроен
	apnsSender       PlatformSender // nil, если APNS не настроен
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo interfaces.NotificationRepository,
	deviceTokenRepo interfaces.DeviceTokenRepository,
	unreadCounter interfaces.UnreadCounter,
	broadcaster interfaces.RoomBroadcaster,
	fcmSender, apnsSender PlatformSender,
	logger *zap.Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		deviceTokenRepo:  deviceTokenRepo,
		unreadCounter:    unreadCounter,
		broadcaster:      broadcaster,
		fcmSender:        fcmSender,
		apnsSender:       apnsSender,
		logger:           logger.Named("NotificationService"),
	}
}

func (s *notificationServiceImpl) NotifyInvitation(ctx context.Context, story *models.Story, inviteeID uuid.UUID, role models.CollaboratorRole) {
	data, _ := json.Marshal(map[string]string{
		"story_id": story.ID.String(),
		"role":     string(role),
	})
	s.deliver(ctx, &models.Notification{
		UserID: inviteeID,
		Type:   models.NotificationTypeInvitation,
		Title:  "Приглашение в историю",
		Body:   fmt.Sprintf("Вас пригласили в историю «%s» с ролью %s", story.Title, role),
		Data:   data,
	})
}

func (s *notificationServiceImpl) NotifyTurnGranted(ctx context.Context, story *models.Story, userID uuid.UUID) {
	data, _ := json.Marshal(map[string]string{"story_id": story.ID.String()})
	s.deliver(ctx, &models.Notification{
		UserID: userID,
		Type:   models.NotificationTypeTurnGranted,
		Title:  "Ваш ход",
		Body:   fmt.Sprintf("Теперь ваш ход в истории «%s»", story.Title),
		Data:   data,
	})
}

func (s *notificationServiceImpl) NotifyStoryPublished(ctx context.Context, story *models.Story) {
	data, _ := json.Marshal(map[string]string{"story_id": story.ID.String()})
	s.deliver(ctx, &models.Notification{
		UserID: story.CreatorID,
		Type:   models.NotificationTypeModeration,
		Title:  "История опубликована",
		Body:   fmt.Sprintf("История «%s» прошла модерацию и опубликована", story.Title),
		Data:   data,
	})
}

func (s *notificationServiceImpl) NotifyMediaReady(ctx context.Context, asset *models.MediaAsset, recipients []uuid.UUID) {
	data, _ := json.Marshal(map[string]string{
		"story_id": asset.StoryID.String(),
		"asset_id": asset.ID.String(),
		"kind":     string(asset.Kind),
	})
	for _, userID := range recipients {
		s.deliver(ctx, &models.Notification{
			UserID: userID,
			Type:   models.NotificationTypeMediaReady,
			Title:  "Медиа готово",
			Body:   "Сгенерированное медиа для вашей истории готово",
			Data:   data,
		})
	}
}

func (s *notificationServiceImpl) NotifyModeration(ctx context.Context, userID uuid.UUID, title, body string) {
	s.deliver(ctx, &models.Notification{
		UserID: userID,
		Type:   models.NotificationTypeModeration,
		Title:  title,
		Body:   body,
	})
}

func (s *notificationServiceImpl) NotifyParental(ctx context.Context, userID uuid.UUID, title, body string) {
	s.deliver(ctx, &models.Notification{
		UserID: userID,
		Type:   models.NotificationTypeParental,
		Title:  title,
		Body:   body,
	})
}

// deliver проводит уведомление по всем каналам. Любая ошибка логируется
// и не прерывает остальные каналы.
func (s *notificationServiceImpl) deliver(ctx context.Context, n *models.Notification) {
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to persist notification", zap.Error(err), zap.String("userID", n.UserID.String()))
		return
	}

	unread, err := s.unreadCounter.Increment(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("Failed to bump unread counter", zap.Error(err), zap.String("userID", n.UserID.String()))
	}

	s.broadcaster.SendToUser(n.UserID, models.EventNewNotification, n)
	if err == nil {
		s.broadcaster.SendToUser(n.UserID, models.EventUnreadCount, models.UnreadCountPayload{Count: unread})
	}

	s.pushToDevices(ctx, n)
}

func (s *notificationServiceImpl) pushToDevices(ctx context.Context, n *models.Notification) {
	tokens, err := s.deviceTokenRepo.ListByUser(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("Failed to list device tokens", zap.Error(err), zap.String("userID", n.UserID.String()))
		return
	}
	if len(tokens) == 0 {
		return
	}

	var iosTokens, androidTokens []string
	for _, t := range tokens {
		switch t.Platform {
		case models.DevicePlatformIOS:
			iosTokens = append(iosTokens, t.Token)
		case models.DevicePlatformAndroid:
			androidTokens = append(androidTokens, t.Token)
		}
	}

	push := PushNotification{Title: n.Title, Body: n.Body}
	data := map[string]string{"notification_type": string(n.Type)}

	if s.fcmSender != nil && len(androidTokens) > 0 {
		if err := s.fcmSender.Send(ctx, androidTokens, push, data); err != nil {
			s.logger.Warn("FCM push failed", zap.Error(err), zap.String("userID", n.UserID.String()))
		}
	}
	if s.apnsSender != nil && len(iosTokens) > 0 {
		if err := s.apnsSender.Send(ctx, iosTokens, push, data); err != nil {
			s.logger.Warn("APNS push failed", zap.Error(err), zap.String("userID", n.UserID.String()))
		}
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, normalizeLimit(limit), offset)
}

// MarkRead помечает уведомление прочитанным и пересинхронизирует счетчик
// из таблицы. Возвращает актуальное число непрочитанных.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (int64, error) {
	if err := s.notificationRepo.MarkRead(ctx, userID, notificationID); err != nil {
		return 0, err
	}
	return s.resyncUnread(ctx, userID)
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notificationRepo.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	_, err := s.resyncUnread(ctx, userID)
	return err
}

func (s *notificationServiceImpl) resyncUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.unreadCounter.Set(ctx, userID, count); err != nil {
		s.logger.Warn("Failed to resync unread counter", zap.Error(err), zap.String("userID", userID.String()))
	}
	s.broadcaster.SendToUser(userID, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
	return count, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.unreadCounter.Get(ctx, userID)
}

func (s *notificationServiceImpl) RegisterDevice(ctx context.Context, userID uuid.UUID, token string, platform models.DevicePlatform) error {
	if token == "" {
		return fmt.Errorf("%w: device token is required", models.ErrInvalidInput)
	}
	if platform != models.DevicePlatformIOS && platform != models.DevicePlatformAndroid {
		return fmt.Errorf("%w: unknown platform %q", models.ErrInvalidInput, platform)
	}
	return s.deviceTokenRepo.Upsert(ctx, &models.DeviceToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	})
}

func (s *notificationServiceImpl) UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	return s.deviceTokenRepo.Delete(ctx, userID, token)
}

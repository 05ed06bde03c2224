package service

import (
	"context"

	"go.uber.org/zap"
)

// PushNotification - заголовок и текст push-уведомления.
type PushNotification struct {
	Title string
	Body  string
}

// PlatformSender отправляет push на токены одной платформы.
// Реализации: FCM (android), APNS (ios) и заглушки для окружений
// без настроенных ключей.
type PlatformSender interface {
	Send(ctx context.Context, tokens []string, notification PushNotification, data map[string]string) error
	Platform() string
}

// --- Заглушки ---

type stubFCMSender struct {
	logger *zap.Logger
}

func NewStubFCMSender(logger *zap.Logger) PlatformSender {
	return &stubFCMSender{logger: logger.Named("stub_fcm_sender")}
}

func (s *stubFCMSender) Send(ctx context.Context, tokens []string, notification PushNotification, data map[string]string) error {
	s.logger.Info("ЗАГЛУШКА: Отправка FCM",
		zap.Int("tokens", len(tokens)),
		zap.String("title", notification.Title),
	)
	return nil
}

func (s *stubFCMSender) Platform() string { return "android" }

type stubApnsSender struct {
	logger *zap.Logger
}

func NewStubApnsSender(logger *zap.Logger) PlatformSender {
	return &stubApnsSender{logger: logger.Named("stub_apns_sender")}
}

func (s *stubApnsSender) Send(ctx context.Context, tokens []string, notification PushNotification, data map[string]string) error {
	s.logger.Info("ЗАГЛУШКА: Отправка APNS",
		zap.Int("tokens", len(tokens)),
		zap.String("title", notification.Title),
	)
	return nil
}

func (s *stubApnsSender) Platform() string { return "ios" }

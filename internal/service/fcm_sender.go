package service

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fcm "firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type fcmSender struct {
	client *fcm.Client
	logger *zap.Logger
}

// NewFCMSender создает реальный отправитель FCM.
// Возвращает nil, nil если путь к ключу сервис-аккаунта не указан.
func NewFCMSender(credentialsPath string, logger *zap.Logger) (PlatformSender, error) {
	if credentialsPath == "" {
		logger.Warn("Путь к файлу ключа Firebase не указан, FCM sender не будет создан")
		return nil, nil
	}

	app, err := firebase.NewApp(context.Background(), nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Firebase App из файла '%s': %w", credentialsPath, err)
	}
	messagingClient, err := app.Messaging(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка получения FCM Messaging client: %w", err)
	}

	logger.Info("FCM Sender инициализирован", zap.String("credentials_path", credentialsPath))
	return &fcmSender{
		client: messagingClient,
		logger: logger.Named("fcm_sender"),
	}, nil
}

func (s *fcmSender) Send(ctx context.Context, tokens []string, notification PushNotification, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	message := &fcm.MulticastMessage{
		Tokens: tokens,
		Notification: &fcm.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
		Android: &fcm.AndroidConfig{
			Priority: "high",
		},
	}

	br, err := s.client.SendMulticast(ctx, message)
	if err != nil {
		s.logger.Error("Ошибка вызова SendMulticast FCM", zap.Error(err))
		return fmt.Errorf("ошибка отправки FCM: %w", err)
	}

	if br.FailureCount > 0 {
		invalidTokens := make([]string, 0)
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			token := "unknown"
			if idx < len(tokens) {
				token = tokens[idx]
			}
			if fcm.IsInvalidArgument(resp.Error) || fcm.IsUnregistered(resp.Error) || fcm.IsSenderIDMismatch(resp.Error) {
				invalidTokens = append(invalidTokens, token)
				s.logger.Warn("Обнаружен невалидный FCM токен", zap.String("token", token), zap.Error(resp.Error))
			} else {
				s.logger.Error("Ошибка доставки FCM для токена", zap.String("token", token), zap.Error(resp.Error))
			}
		}
		if len(invalidTokens) > 0 {
			s.logger.Info("Невалидные токены для удаления", zap.Strings("tokens", invalidTokens))
		}
		return fmt.Errorf("ошибка доставки %d из %d FCM сообщений", br.FailureCount, len(tokens))
	}
	return nil
}

func (s *fcmSender) Platform() string { return "android" }

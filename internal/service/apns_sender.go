package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"go.uber.org/zap"
)

// APNSConfig - параметры подключения к APNs.
type APNSConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

type apnsSender struct {
	client *apns2.Client
	logger *zap.Logger
	topic  string
}

// NewApnsSender создает реальный отправитель APNS.
// Возвращает nil, nil при неполной конфигурации.
func NewApnsSender(cfg APNSConfig, logger *zap.Logger) (PlatformSender, error) {
	if cfg.KeyPath == "" || cfg.KeyID == "" || cfg.TeamID == "" || cfg.Topic == "" {
		logger.Warn("APNS конфигурация не полная, APNS sender не будет создан")
		return nil, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа APNS из файла %s: %w", cfg.KeyPath, err)
	}
	tok := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tok).Development()
	if cfg.Production {
		client = apns2.NewTokenClient(tok).Production()
	}

	logger.Info("APNS Sender инициализирован",
		zap.String("key_id", cfg.KeyID),
		zap.String("topic", cfg.Topic),
		zap.Bool("production", cfg.Production))
	return &apnsSender{
		client: client,
		logger: logger.Named("apns_sender"),
		topic:  cfg.Topic,
	}, nil
}

func (s *apnsSender) Send(ctx context.Context, tokens []string, notification PushNotification, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	payloadData := payload.NewPayload().
		AlertTitle(notification.Title).
		AlertBody(notification.Body).
		Sound("default")
	for k, v := range data {
		payloadData.Custom(k, v)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failureCount := 0
	var firstError error
	invalidTokens := make([]string, 0)

	for _, deviceToken := range tokens {
		wg.Add(1)
		go func(tokenToSend string) {
			defer wg.Done()

			res, err := s.client.PushWithContext(ctx, &apns2.Notification{
				DeviceToken: tokenToSend,
				Topic:       s.topic,
				Payload:     payloadData,
				Priority:    apns2.PriorityHigh,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("Ошибка вызова APNS Push", zap.String("token", tokenToSend), zap.Error(err))
				failureCount++
				if firstError == nil {
					firstError = fmt.Errorf("apns send error: %w", err)
				}
				return
			}
			if !res.Sent() {
				failureCount++
				if firstError == nil {
					firstError = fmt.Errorf("apns delivery failed: %s", res.Reason)
				}
				if res.Reason == apns2.ReasonUnregistered || res.Reason == apns2.ReasonBadDeviceToken {
					invalidTokens = append(invalidTokens, tokenToSend)
				}
			}
		}(deviceToken)
	}
	wg.Wait()

	if len(invalidTokens) > 0 {
		s.logger.Info("Обнаружены невалидные APNS токены", zap.Strings("tokens", invalidTokens))
	}
	if failureCount > 0 {
		s.logger.Error("APNS отправка завершена с ошибками", zap.Int("failures", failureCount), zap.Int("total", len(tokens)))
		return firstError
	}
	return nil
}

func (s *apnsSender) Platform() string { return "ios" }

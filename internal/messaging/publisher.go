package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// MediaTaskPublisher публикует задачи генерации медиа.
type MediaTaskPublisher interface {
	PublishMediaTask(ctx context.Context, payload MediaTaskPayload) error
}

// MediaResultPublisher публикует результаты генерации (сторона воркера).
type MediaResultPublisher interface {
	PublishMediaResult(ctx context.Context, payload MediaResultPayload) error
}

// rabbitMQPublisher - универсальный паблишер в одну очередь.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQMediaTaskPublisher создает паблишер задач генерации.
// Очередь объявляется durable; параметры должны совпадать с консьюмером воркера.
func NewRabbitMQMediaTaskPublisher(conn *amqp.Connection, queueName string) (MediaTaskPublisher, error) {
	p, err := newQueuePublisher(conn, queueName)
	if err != nil {
		return nil, fmt.Errorf("media task publisher: %w", err)
	}
	return p, nil
}

// NewRabbitMQMediaResultPublisher создает паблишер результатов генерации.
func NewRabbitMQMediaResultPublisher(conn *amqp.Connection, queueName string) (MediaResultPublisher, error) {
	p, err := newQueuePublisher(conn, queueName)
	if err != nil {
		return nil, fmt.Errorf("media result publisher: %w", err)
	}
	return p, nil
}

func newQueuePublisher(conn *amqp.Connection, queueName string) (*rabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть канал: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("не удалось объявить очередь '%s': %w", queueName, err)
	}
	log.Info().Str("queue", queueName).Msg("Паблишер инициализирован")
	return &rabbitMQPublisher{channel: ch, queueName: queueName}, nil
}

func (p *rabbitMQPublisher) PublishMediaTask(ctx context.Context, payload MediaTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи генерации медиа %s: %w", payload.AssetID, err)
	}
	if err := p.publish(ctx, body); err != nil {
		log.Error().Err(err).Str("assetID", payload.AssetID.String()).Msg("Ошибка публикации задачи генерации медиа")
		return err
	}
	log.Info().Str("assetID", payload.AssetID.String()).Str("kind", payload.Kind).Msg("Задача генерации медиа опубликована")
	return nil
}

func (p *rabbitMQPublisher) PublishMediaResult(ctx context.Context, payload MediaResultPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации результата генерации %s: %w", payload.AssetID, err)
	}
	if err := p.publish(ctx, body); err != nil {
		log.Error().Err(err).Str("assetID", payload.AssetID.String()).Msg("Ошибка публикации результата генерации")
		return err
	}
	return nil
}

func (p *rabbitMQPublisher) publish(ctx context.Context, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(pubCtx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

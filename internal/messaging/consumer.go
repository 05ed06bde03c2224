package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Message - одно доставленное сообщение вместе со счетчиком попыток.
type Message struct {
	Body    []byte
	Attempt int
	// Final выставляется на последней попытке: после ошибки сообщение
	// уйдет в DLQ, а не на повтор.
	Final bool
}

// HandlerFunc обрабатывает одно сообщение. Возврат ошибки ведет к повтору
// с инкрементом заголовка попыток; после исчерпания бюджета сообщение
// переезжает в <queue>.dlq.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer читает одну очередь с ручным подтверждением.
type Consumer struct {
	channel    *amqp.Channel
	queueName  string
	maxRetries int
	handler    HandlerFunc
}

// NewConsumer объявляет основную очередь и ее DLQ и настраивает prefetch.
func NewConsumer(conn *amqp.Connection, queueName string, prefetch, maxRetries int, handler HandlerFunc) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("consumer %s: не удалось открыть канал: %w", queueName, err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("consumer %s: не удалось объявить очередь: %w", queueName, err)
	}
	if _, err := ch.QueueDeclare(queueName+DLQSuffix, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("consumer %s: не удалось объявить DLQ: %w", queueName, err)
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("consumer %s: не удалось настроить QoS: %w", queueName, err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Consumer{channel: ch, queueName: queueName, maxRetries: maxRetries, handler: handler}, nil
}

// Start блокируется до закрытия канала доставки или отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer %s: не удалось подписаться: %w", c.queueName, err)
	}
	log.Info().Str("queue", c.queueName).Msg("Консьюмер запущен")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consumer %s: канал доставки закрыт", c.queueName)
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	attempt := retryCount(d.Headers) + 1
	err := c.handler(ctx, Message{Body: d.Body, Attempt: attempt, Final: attempt >= c.maxRetries})
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error().Err(ackErr).Str("queue", c.queueName).Msg("Ошибка подтверждения сообщения")
		}
		return
	}

	log.Error().Err(err).
		Str("queue", c.queueName).
		Int("attempt", attempt).
		Msg("Ошибка обработки сообщения")

	if attempt >= c.maxRetries {
		// Бюджет исчерпан: в DLQ и ack оригинала
		if pubErr := c.republish(ctx, c.queueName+DLQSuffix, d.Body, attempt); pubErr != nil {
			log.Error().Err(pubErr).Str("queue", c.queueName).Msg("Не удалось отправить сообщение в DLQ")
			_ = d.Nack(false, true)
			return
		}
		log.Warn().Str("queue", c.queueName).Int("attempts", attempt).Msg("Сообщение отправлено в DLQ")
		_ = d.Ack(false)
		return
	}

	// Экспоненциальная пауза перед возвратом в очередь
	select {
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
	}
	if pubErr := c.republish(ctx, c.queueName, d.Body, attempt); pubErr != nil {
		log.Error().Err(pubErr).Str("queue", c.queueName).Msg("Не удалось перепубликовать сообщение")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) republish(ctx context.Context, queue string, body []byte, attempts int) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.channel.PublishWithContext(pubCtx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{RetryCountHeader: int32(attempts)},
		Body:         body,
	})
}

// Close закрывает канал консьюмера.
func (c *Consumer) Close() error {
	return c.channel.Close()
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[RetryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

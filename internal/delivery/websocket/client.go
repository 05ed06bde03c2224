package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wove-server/internal/models"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 4096
	// Таймаут обработки одного клиентского события.
	eventTimeout = 10 * time.Second
)

// Namespace соединения определяет, какие клиентские события ему доступны.
const (
	NamespaceStory         = "story"
	NamespaceNotifications = "notifications"
)

// eventHandler обрабатывает событие, присланное клиентом.
type eventHandler interface {
	HandleEvent(ctx context.Context, client *Client, msg models.WSMessage)
}

// Client представляет собой одно WebSocket соединение пользователя.
type Client struct {
	userID    uuid.UUID
	username  string
	roles     []string
	socketID  string
	namespace string

	conn *websocket.Conn
	send chan []byte

	// enqueue может гоняться с закрытием канала в хабе.
	sendMu     sync.Mutex
	sendClosed bool

	hub     *Hub
	events  eventHandler
	logger  *zap.Logger
}

// enqueue ставит сообщение в очередь отправки. Переполненная очередь
// означает мертвого или безнадежно медленного клиента - сообщение
// отбрасывается, соединение добьет ping-таймаут.
func (c *Client) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("Очередь отправки переполнена, сообщение отброшено")
	}
}

func (c *Client) markSendClosed() {
	c.sendMu.Lock()
	c.sendClosed = true
	c.sendMu.Unlock()
}

// readPump читает клиентские события и передает их обработчику.
func (c *Client) readPump() {
	defer func() {
		c.markSendClosed()
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
		c.logger.Debug("readPump завершен")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Ошибка чтения WebSocket", zap.Error(err))
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.events.HandleEvent(ctx, c, msg)
		cancel()
	}
}

// writePump откачивает сообщения из очереди в соединение и шлет пинги.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.logger.Debug("writePump завершен")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Ошибка записи WebSocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError отправляет клиенту событие об ошибке обработки его сообщения.
func (c *Client) sendError(message string) {
	raw, err := json.Marshal(models.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(models.WSMessage{Type: models.EventError, Payload: raw})
	if err != nil {
		return
	}
	c.enqueue(data)
}

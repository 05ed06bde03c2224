package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Hub управляет активными WebSocket соединениями и комнатами историй.
// Членство в комнатах дублируется в Redis (RoomRepository), чтобы его
// видели другие инстансы сервера; сам хаб рассылает только своим клиентам.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	users map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

var _ interfaces.RoomBroadcaster = (*Hub)(nil)

// NewHub создает и запускает хаб.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		users:      make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Named("WSHub"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	h.logger.Info("Хаб WebSocket запущен")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.users[client.userID]; !ok {
				h.users[client.userID] = make(map[*Client]struct{})
			}
			h.users[client.userID][client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Клиент подключен",
				zap.String("userID", client.userID.String()),
				zap.String("socketID", client.socketID))

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.users[client.userID]; ok {
				if _, present := conns[client]; present {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.users, client.userID)
					}
				}
			}
			for roomID, members := range h.rooms {
				if _, ok := members[client]; ok {
					delete(members, client)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("Клиент отключен",
				zap.String("userID", client.userID.String()),
				zap.String("socketID", client.socketID))
		}
	}
}

// RegisterClient регистрирует новое соединение.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient убирает соединение и выводит его из всех комнат.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// JoinRoom добавляет соединение в комнату истории.
func (h *Hub) JoinRoom(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
}

// LeaveRoom убирает соединение из комнаты.
func (h *Hub) LeaveRoom(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// StoryRoomID строит идентификатор комнаты истории.
func StoryRoomID(storyID uuid.UUID) string {
	return "story:" + storyID.String()
}

// BroadcastToStory отправляет событие всем клиентам в комнате истории.
func (h *Hub) BroadcastToStory(storyID uuid.UUID, eventType string, payload any) {
	roomID := StoryRoomID(storyID)
	data, err := h.envelope(eventType, roomID, payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	members := h.rooms[roomID]
	targets := make([]*Client, 0, len(members))
	for client := range members {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(data)
	}
}

// SendToUser отправляет событие всем соединениям пользователя.
func (h *Hub) SendToUser(userID uuid.UUID, eventType string, payload any) {
	data, err := h.envelope(eventType, "", payload)
	if err != nil {
		return
	}

	h.mu.RLock()
	conns := h.users[userID]
	targets := make([]*Client, 0, len(conns))
	for client := range conns {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(data)
	}
}

func (h *Hub) envelope(eventType, roomID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Не удалось сериализовать payload события",
			zap.String("eventType", eventType), zap.Error(err))
		return nil, err
	}
	data, err := json.Marshal(models.WSMessage{Type: eventType, RoomID: roomID, Payload: raw})
	if err != nil {
		h.logger.Error("Не удалось сериализовать конверт события",
			zap.String("eventType", eventType), zap.Error(err))
		return nil, err
	}
	return data, nil
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
	"wove-server/internal/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяется CORS-политикой на уровне балансировщика.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler принимает WebSocket соединения и обрабатывает клиентские события.
type Handler struct {
	hub           *Hub
	authService   service.AuthService
	storyService  service.StoryService
	narrative     service.NarrativeService
	notifications service.NotificationService
	roomRepo      interfaces.RoomRepository
	logger        *zap.Logger
}

// NewHandler создает обработчик WebSocket.
func NewHandler(
	hub *Hub,
	authService service.AuthService,
	storyService service.StoryService,
	narrative service.NarrativeService,
	notifications service.NotificationService,
	roomRepo interfaces.RoomRepository,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		hub:           hub,
		authService:   authService,
		storyService:  storyService,
		narrative:     narrative,
		notifications: notifications,
		roomRepo:      roomRepo,
		logger:        logger.Named("WSHandler"),
	}
}

// RegisterRoutes монтирует WebSocket endpoint'ы.
// Токен передается query-параметром, потому что браузерный WebSocket API
// не позволяет выставить заголовок Authorization.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/story", func(c *gin.Context) {
		h.serve(c, NamespaceStory)
	})
	router.GET("/ws/notifications", func(c *gin.Context) {
		h.serve(c, NamespaceNotifications)
	})
}

func (h *Handler) serve(c *gin.Context, namespace string) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Missing token"})
		return
	}

	claims, err := h.authService.VerifyAccessToken(c.Request.Context(), tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Invalid token"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "User not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Error("Не удалось установить WebSocket соединение",
			zap.String("userID", claims.UserID.String()), zap.Error(err))
		return
	}

	client := &Client{
		userID:    user.ID,
		username:  user.Username,
		roles:     claims.Roles,
		socketID:  uuid.NewString(),
		namespace: namespace,
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       h.hub,
		events:    h,
		logger: h.logger.With(
			zap.String("userID", user.ID.String()),
			zap.String("namespace", namespace)),
	}

	if err := h.roomRepo.AddSocket(c.Request.Context(), user.ID, client.socketID); err != nil {
		h.logger.Warn("Не удалось зарегистрировать сокет в Redis", zap.Error(err))
	}

	h.hub.RegisterClient(client)
	h.logger.Info("WebSocket соединение установлено",
		zap.String("userID", user.ID.String()),
		zap.String("namespace", namespace))

	go client.writePump()
	go func() {
		client.readPump()
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := h.roomRepo.RemoveSocket(ctx, client.userID, client.socketID); err != nil {
			h.logger.Warn("Не удалось удалить сокет из Redis", zap.Error(err))
		}
	}()

	// Клиент уведомлений сразу получает актуальный счетчик.
	if namespace == NamespaceNotifications {
		count, err := h.notifications.UnreadCount(c.Request.Context(), user.ID)
		if err == nil {
			h.hub.SendToUser(user.ID, models.EventUnreadCount, models.UnreadCountPayload{Count: count})
		}
	}
}

// HandleEvent обрабатывает одно клиентское событие.
func (h *Handler) HandleEvent(ctx context.Context, client *Client, msg models.WSMessage) {
	switch client.namespace {
	case NamespaceStory:
		h.handleStoryEvent(ctx, client, msg)
	case NamespaceNotifications:
		h.handleNotificationEvent(ctx, client, msg)
	}
}

func (h *Handler) handleStoryEvent(ctx context.Context, client *Client, msg models.WSMessage) {
	storyID, err := parseRoomID(msg.RoomID)
	if err != nil {
		client.sendError("invalid room id")
		return
	}

	switch msg.Type {
	case models.EventJoinRoom:
		// Доступ к комнате равен праву чтения истории.
		if _, err := h.storyService.GetStory(ctx, client.userID, client.roles, storyID); err != nil {
			client.sendError("story not accessible")
			return
		}
		h.hub.JoinRoom(StoryRoomID(storyID), client)
		if err := h.roomRepo.AddToRoom(ctx, StoryRoomID(storyID), client.userID); err != nil {
			h.logger.Warn("Не удалось сохранить членство комнаты в Redis", zap.Error(err))
		}

	case models.EventLeaveRoom:
		h.hub.LeaveRoom(StoryRoomID(storyID), client)
		if err := h.roomRepo.RemoveFromRoom(ctx, StoryRoomID(storyID), client.userID); err != nil {
			h.logger.Warn("Не удалось удалить членство комнаты из Redis", zap.Error(err))
		}

	case models.EventChatMessage:
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || strings.TrimSpace(payload.Text) == "" {
			client.sendError("empty chat message")
			return
		}
		h.hub.BroadcastToStory(storyID, models.EventChatMessage, models.ChatMessagePayload{
			StoryID:  storyID,
			UserID:   client.userID,
			Username: client.username,
			Text:     payload.Text,
		})

	case models.EventTypingStart, models.EventTypingEnd:
		h.hub.BroadcastToStory(storyID, msg.Type, models.TypingPayload{
			StoryID: storyID,
			UserID:  client.userID,
		})

	case models.EventRequestTurn:
		if err := h.narrative.RequestTurn(ctx, client.userID, storyID); err != nil {
			client.sendError("turn request rejected")
		}

	case models.EventReleaseTurn:
		if err := h.narrative.ReleaseTurn(ctx, client.userID, storyID); err != nil {
			client.sendError("turn release rejected")
		}

	default:
		client.sendError("unknown event type")
	}
}

func (h *Handler) handleNotificationEvent(ctx context.Context, client *Client, msg models.WSMessage) {
	switch msg.Type {
	case models.EventMarkRead:
		var payload struct {
			NotificationID uuid.UUID `json:"notification_id"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.NotificationID == uuid.Nil {
			client.sendError("invalid notification id")
			return
		}
		count, err := h.notifications.MarkRead(ctx, client.userID, payload.NotificationID)
		if err != nil {
			client.sendError("failed to mark notification read")
			return
		}
		h.hub.SendToUser(client.userID, models.EventUnreadCount, models.UnreadCountPayload{Count: count})

	case models.EventMarkAllRead:
		if err := h.notifications.MarkAllRead(ctx, client.userID); err != nil {
			client.sendError("failed to mark notifications read")
			return
		}
		h.hub.SendToUser(client.userID, models.EventUnreadCount, models.UnreadCountPayload{Count: 0})

	default:
		client.sendError("unknown event type")
	}
}

// parseRoomID принимает как голый UUID истории, так и форму "story:<uuid>".
func parseRoomID(roomID string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimPrefix(roomID, "story:"))
}

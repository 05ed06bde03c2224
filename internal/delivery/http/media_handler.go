package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/models"
	"wove-server/internal/service"
)

// MediaHandler обслуживает запросы генерации медиа и просмотр ассетов.
type MediaHandler struct {
	mediaService service.MediaService
	logger       *zap.Logger
}

func NewMediaHandler(mediaService service.MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		logger:       logger.Named("MediaHandler"),
	}
}

func (h *MediaHandler) RegisterRoutes(stories *gin.RouterGroup, media *gin.RouterGroup) {
	stories.GET("/:id/media", h.listByStory)
	stories.POST("/:id/media", h.requestGeneration)
	media.GET("/:assetID", h.getAsset)
}

func (h *MediaHandler) requestGeneration(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		SegmentID *string `json:"segment_id"`
		Kind      string  `json:"kind" binding:"required"`
		Prompt    string  `json:"prompt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	var segmentID *uuid.UUID
	if req.SegmentID != nil {
		id, err := parseRequestUUID(c, *req.SegmentID, "segment_id")
		if err != nil {
			return
		}
		segmentID = &id
	}

	asset, err := h.mediaService.RequestGeneration(c.Request.Context(), userID, storyID, segmentID, models.MediaKind(req.Kind), req.Prompt)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	// 202: генерация асинхронная, готовность придет по WebSocket
	c.JSON(http.StatusAccepted, asset)
}

func (h *MediaHandler) listByStory(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	assets, err := h.mediaService.ListByStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assets": assets})
}

func (h *MediaHandler) getAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	assetID, ok := pathUUID(c, "assetID")
	if !ok {
		return
	}
	asset, err := h.mediaService.GetAsset(c.Request.Context(), userID, assetID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

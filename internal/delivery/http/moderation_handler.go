package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/models"
	"wove-server/internal/service"
)

// ModerationHandler обслуживает жалобы и санкции.
type ModerationHandler struct {
	moderation service.ModerationService
	logger     *zap.Logger
}

func NewModerationHandler(moderation service.ModerationService, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{
		moderation: moderation,
		logger:     logger.Named("ModerationHandler"),
	}
}

func (h *ModerationHandler) RegisterRoutes(reports *gin.RouterGroup, users *gin.RouterGroup) {
	reports.POST("", h.createReport)
	reports.GET("", h.listReports)
	reports.GET("/:id", h.getReport)
	reports.PUT("/:id/review", h.reviewReport)

	users.POST("/:id/ban", h.banUser)
	users.POST("/:id/unban", h.unbanUser)
}

func (h *ModerationHandler) createReport(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	var req struct {
		StoryID   *string `json:"story_id"`
		SegmentID *string `json:"segment_id"`
		Reason    string  `json:"reason" binding:"required"`
		Details   *string `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	var storyID, segmentID *uuid.UUID
	if req.StoryID != nil {
		id, err := parseRequestUUID(c, *req.StoryID, "story_id")
		if err != nil {
			return
		}
		storyID = &id
	}
	if req.SegmentID != nil {
		id, err := parseRequestUUID(c, *req.SegmentID, "segment_id")
		if err != nil {
			return
		}
		segmentID = &id
	}

	report, err := h.moderation.CreateReport(c.Request.Context(), userID, storyID, segmentID, req.Reason, req.Details)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *ModerationHandler) listReports(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	limit, offset := parsePagination(c)
	status := models.ReportStatus(c.DefaultQuery("status", string(models.ReportStatusPending)))

	reports, err := h.moderation.ListReports(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "offset": offset})
}

func (h *ModerationHandler) getReport(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	reportID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	report, err := h.moderation.GetReport(c.Request.Context(), userID, reportID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ModerationHandler) reviewReport(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	reportID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status     string  `json:"status" binding:"required"`
		Resolution *string `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	report, err := h.moderation.ReviewReport(c.Request.Context(), userID, reportID, models.ReportStatus(req.Status), req.Resolution)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ModerationHandler) banUser(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if err := h.moderation.BanUser(c.Request.Context(), userID, targetID, req.Reason); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user banned"})
}

func (h *ModerationHandler) unbanUser(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.moderation.UnbanUser(c.Request.Context(), userID, targetID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user unbanned"})
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wove-server/internal/models"
	"wove-server/internal/service"
)

// ParentalHandler обслуживает родительский надзор и заявки на возраст.
type ParentalHandler struct {
	parental service.ParentalService
	logger   *zap.Logger
}

func NewParentalHandler(parental service.ParentalService, logger *zap.Logger) *ParentalHandler {
	return &ParentalHandler{
		parental: parental,
		logger:   logger.Named("ParentalHandler"),
	}
}

func (h *ParentalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/links", h.requestLink)
	rg.POST("/links/:id/confirm", h.confirmLink)
	rg.DELETE("/links/:id", h.revokeLink)
	rg.GET("/children", h.listChildren)
	rg.GET("/children/:childID/stories", h.listChildStories)

	rg.POST("/verifications", h.requestVerification)
	rg.GET("/verifications", h.listVerifications)
	rg.POST("/verifications/:id/review", h.reviewVerification)
}

func (h *ParentalHandler) requestLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	var req struct {
		ChildUserID string `json:"child_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	childID, err := parseRequestUUID(c, req.ChildUserID, "child_user_id")
	if err != nil {
		return
	}

	link, err := h.parental.RequestLink(c.Request.Context(), userID, childID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (h *ParentalHandler) confirmLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	linkID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.parental.ConfirmLink(c.Request.Context(), userID, linkID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "link confirmed"})
}

func (h *ParentalHandler) revokeLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	linkID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.parental.RevokeLink(c.Request.Context(), userID, linkID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ParentalHandler) listChildren(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	links, err := h.parental.ListChildren(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (h *ParentalHandler) listChildStories(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	childID, ok := pathUUID(c, "childID")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)
	stories, err := h.parental.ListChildStories(c.Request.Context(), userID, childID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories, "offset": offset})
}

func (h *ParentalHandler) requestVerification(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	var req struct {
		RequestedTier string `json:"requested_tier" binding:"required"`
		Method        string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	verification, err := h.parental.RequestAgeVerification(c.Request.Context(), userID, models.AgeTier(req.RequestedTier), models.VerificationMethod(req.Method))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, verification)
}

func (h *ParentalHandler) listVerifications(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	limit, offset := parsePagination(c)
	status := models.VerificationStatus(c.DefaultQuery("status", string(models.VerificationPending)))

	verifications, err := h.parental.ListVerifications(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": verifications, "offset": offset})
}

func (h *ParentalHandler) reviewVerification(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	requestID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if err := h.parental.ReviewAgeVerification(c.Request.Context(), userID, requestID, *req.Approve); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification reviewed"})
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/models"
	"wove-server/internal/service"
)

// parseUUIDList разбирает список строковых UUID.
func parseUUIDList(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseRequestUUID разбирает UUID из тела запроса; при ошибке пишет 400.
func parseRequestUUID(c *gin.Context, raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid " + field})
		return uuid.Nil, err
	}
	return id, nil
}

// NarrativeHandler обслуживает сегменты, точки ветвления, ходы и AI-подсказки.
type NarrativeHandler struct {
	narrative service.NarrativeService
	logger    *zap.Logger
}

func NewNarrativeHandler(narrative service.NarrativeService, logger *zap.Logger) *NarrativeHandler {
	return &NarrativeHandler{
		narrative: narrative,
		logger:    logger.Named("NarrativeHandler"),
	}
}

// RegisterRoutes монтирует маршруты нарратива под /stories/:id.
func (h *NarrativeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/segments", h.listSegments)
	rg.POST("/:id/segments", h.addSegment)
	rg.POST("/:id/segments/ai", h.addAISegment)
	rg.PUT("/:id/segments/order", h.reorderSegments)
	rg.DELETE("/:id/segments/:segmentID", h.deleteSegment)

	rg.GET("/:id/branches", h.listBranchPoints)
	rg.POST("/:id/branches", h.createBranchPoint)
	rg.POST("/:id/branches/:branchID/resolve", h.resolveBranch)

	rg.POST("/:id/turn/request", h.requestTurn)
	rg.POST("/:id/turn/release", h.releaseTurn)

	rg.POST("/:id/suggest", h.suggest)
}

func (h *NarrativeHandler) listSegments(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	segments, err := h.narrative.ListSegments(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

func (h *NarrativeHandler) addSegment(c *gin.Context) {
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
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	segment, err := h.narrative.AddSegment(c.Request.Context(), userID, storyID, req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	segmentsCreatedTotal.WithLabelValues("human").Inc()
	c.JSON(http.StatusCreated, segment)
}

func (h *NarrativeHandler) addAISegment(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	segment, err := h.narrative.AddAISegment(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	segmentsCreatedTotal.WithLabelValues("ai").Inc()
	c.JSON(http.StatusCreated, segment)
}

func (h *NarrativeHandler) reorderSegments(c *gin.Context) {
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
		SegmentIDs []string `json:"segment_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	orderedIDs, err := parseUUIDList(req.SegmentIDs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "segment_ids must be valid UUIDs"})
		return
	}

	if err := h.narrative.ReorderSegments(c.Request.Context(), userID, storyID, orderedIDs); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "segments reordered"})
}

func (h *NarrativeHandler) deleteSegment(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	segmentID, ok := pathUUID(c, "segmentID")
	if !ok {
		return
	}
	if err := h.narrative.DeleteSegment(c.Request.Context(), userID, storyID, segmentID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) listBranchPoints(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	branches, err := h.narrative.ListBranchPoints(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"branch_points": branches})
}

func (h *NarrativeHandler) createBranchPoint(c *gin.Context) {
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
		SourceSegmentID string   `json:"source_segment_id" binding:"required"`
		PromptText      *string  `json:"prompt_text"`
		Options         []string `json:"options" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	sourceID, err := parseRequestUUID(c, req.SourceSegmentID, "source_segment_id")
	if err != nil {
		return
	}

	bp, err := h.narrative.CreateBranchPoint(c.Request.Context(), userID, storyID, sourceID, req.PromptText, req.Options)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bp)
}

func (h *NarrativeHandler) resolveBranch(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	branchID, ok := pathUUID(c, "branchID")
	if !ok {
		return
	}
	var req struct {
		OptionID string `json:"option_id" binding:"required"`
		// Текст первого сегмента новой ветки; пустой заменяется
		// текстом выбранного варианта.
		FirstSegmentContent string `json:"first_segment_content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	optionID, err := parseRequestUUID(c, req.OptionID, "option_id")
	if err != nil {
		return
	}

	segment, err := h.narrative.ResolveBranch(c.Request.Context(), userID, branchID, optionID, req.FirstSegmentContent)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	segmentsCreatedTotal.WithLabelValues("branch").Inc()
	c.JSON(http.StatusCreated, segment)
}

func (h *NarrativeHandler) requestTurn(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.narrative.RequestTurn(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "turn granted"})
}

func (h *NarrativeHandler) releaseTurn(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.narrative.ReleaseTurn(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "turn released"})
}

func (h *NarrativeHandler) suggest(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	suggestion, err := h.narrative.SuggestContinuation(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/models"
	"wove-server/internal/service"
)

// StoryHandler обслуживает CRUD историй и управление участниками.
type StoryHandler struct {
	storyService service.StoryService
	authService  service.AuthService
	logger       *zap.Logger
}

func NewStoryHandler(storyService service.StoryService, authService service.AuthService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		authService:  authService,
		logger:       logger.Named("StoryHandler"),
	}
}

func (h *StoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.listMine)
	rg.GET("/published", h.listPublished)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.update)
	rg.PUT("/:id/status", h.changeStatus)
	rg.DELETE("/:id", h.delete)

	rg.GET("/:id/collaborators", h.listCollaborators)
	rg.POST("/:id/collaborators", h.invite)
	rg.POST("/:id/collaborators/accept", h.acceptInvitation)
	rg.PUT("/:id/collaborators/:userID", h.changeRole)
	rg.DELETE("/:id/collaborators/:userID", h.removeCollaborator)
}

type createStoryRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     *string         `json:"description"`
	AgeTier         string          `json:"age_tier"`
	IsPrivate       bool            `json:"is_private"`
	AllowCollab     bool            `json:"allow_collaboration"`
	Settings        json.RawMessage `json:"settings"`
	GenreIDs        []string        `json:"genre_ids"`
	ContentWarnings []string        `json:"content_warnings"`
}

type updateStoryRequest struct {
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	IsPrivate       *bool           `json:"is_private"`
	AllowCollab     *bool           `json:"allow_collaboration"`
	Settings        json.RawMessage `json:"settings"`
	GenreIDs        []string        `json:"genre_ids"`
	ContentWarnings []string        `json:"content_warnings"`
}

// parsePagination читает limit/offset из query параметров.
func parsePagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// pathUUID разбирает UUID из параметра пути; при ошибке пишет 400 и возвращает false.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid " + name + " path parameter"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *StoryHandler) create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	story, err := h.storyService.CreateStory(c.Request.Context(), userID, service.CreateStoryInput{
		Title:           req.Title,
		Description:     req.Description,
		AgeTier:         models.AgeTier(req.AgeTier),
		IsPrivate:       req.IsPrivate,
		AllowCollab:     req.AllowCollab,
		SettingsJSON:    req.Settings,
		GenreIDs:        req.GenreIDs,
		ContentWarnings: req.ContentWarnings,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) get(c *gin.Context) {
	userID, _ := userIDFromContext(c)
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	story, err := h.storyService.GetStory(c.Request.Context(), userID, rolesFromContext(c), storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) listMine(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	limit, offset := parsePagination(c)
	stories, err := h.storyService.ListMyStories(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories, "offset": offset})
}

func (h *StoryHandler) listPublished(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	limit, offset := parsePagination(c)
	// Каталог фильтруется по подтвержденной возрастной категории зрителя
	stories, err := h.storyService.ListPublished(c.Request.Context(), user.VerifiedAgeTier, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories, "offset": offset})
}

func (h *StoryHandler) update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	story, err := h.storyService.UpdateStory(c.Request.Context(), userID, storyID, service.UpdateStoryInput{
		Title:           req.Title,
		Description:     req.Description,
		IsPrivate:       req.IsPrivate,
		AllowCollab:     req.AllowCollab,
		SettingsJSON:    req.Settings,
		GenreIDs:        req.GenreIDs,
		ContentWarnings: req.ContentWarnings,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) changeStatus(c *gin.Context) {
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
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	story, err := h.storyService.ChangeStatus(c.Request.Context(), userID, rolesFromContext(c), storyID, models.StoryStatus(req.Status))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.storyService.DeleteStory(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) listCollaborators(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	collabs, err := h.storyService.ListCollaborators(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": collabs})
}

func (h *StoryHandler) invite(c *gin.Context) {
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
		UserID string `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	inviteeID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid user_id"})
		return
	}

	collab, err := h.storyService.InviteCollaborator(c.Request.Context(), userID, storyID, inviteeID, models.CollaboratorRole(req.Role))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, collab)
}

func (h *StoryHandler) acceptInvitation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.storyService.AcceptInvitation(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invitation accepted"})
}

func (h *StoryHandler) changeRole(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userID")
	if !ok {
		return
	}
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	if err := h.storyService.ChangeCollaboratorRole(c.Request.Context(), userID, storyID, targetID, models.CollaboratorRole(req.Role)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

func (h *StoryHandler) removeCollaborator(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	storyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userID")
	if !ok {
		return
	}
	if err := h.storyService.RemoveCollaborator(c.Request.Context(), userID, storyID, targetID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// CreateStoryInput - параметры создания истории.
type CreateStoryInput struct {
	Title           string
	Description     *string
	AgeTier         models.AgeTier
	IsPrivate       bool
	AllowCollab     bool
	SettingsJSON    json.RawMessage
	GenreIDs        []string
	ContentWarnings []string
}

// UpdateStoryInput - частичное обновление истории. Nil-поля не меняются.
type UpdateStoryInput struct {
	Title           *string
	Description     *string
	IsPrivate       *bool
	AllowCollab     *bool
	SettingsJSON    json.RawMessage // Патч поверх текущих настроек
	GenreIDs        []string
	ContentWarnings []string
}

// StoryService реализует CRUD историй, управление участниками и жизненный цикл статусов.
type StoryService interface {
	CreateStory(ctx context.Context, creatorID uuid.UUID, input CreateStoryInput) (*models.Story, error)
	GetStory(ctx context.Context, callerID uuid.UUID, callerRoles []string, storyID uuid.UUID) (*models.Story, error)
	ListMyStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error)
	ListPublished(ctx context.Context, viewerTier models.AgeTier, limit, offset int) ([]models.Story, error)
	UpdateStory(ctx context.Context, callerID, storyID uuid.UUID, input UpdateStoryInput) (*models.Story, error)
	ChangeStatus(ctx context.Context, callerID uuid.UUID, callerRoles []string, storyID uuid.UUID, next models.StoryStatus) (*models.Story, error)
	DeleteStory(ctx context.Context, callerID, storyID uuid.UUID) error

	InviteCollaborator(ctx context.Context, callerID, storyID, inviteeID uuid.UUID, role models.CollaboratorRole) (*models.StoryCollaborator, error)
	AcceptInvitation(ctx context.Context, userID, storyID uuid.UUID) error
	ChangeCollaboratorRole(ctx context.Context, callerID, storyID, targetID uuid.UUID, role models.CollaboratorRole) error
	RemoveCollaborator(ctx context.Context, callerID, storyID, targetID uuid.UUID) error
	ListCollaborators(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StoryCollaborator, error)
}

type storyServiceImpl struct {
	storyRepo   interfaces.StoryRepository
	collabRepo  interfaces.CollaboratorRepository
	permissions PermissionService
	txRunner    interfaces.TxRunner
	notifier    NotificationService
	logger      *zap.Logger
}

func NewStoryService(
	storyRepo interfaces.StoryRepository,
	collabRepo interfaces.CollaboratorRepository,
	permissions PermissionService,
	txRunner interfaces.TxRunner,
	notifier NotificationService,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		storyRepo:   storyRepo,
		collabRepo:  collabRepo,
		permissions: permissions,
		txRunner:    txRunner,
		notifier:    notifier,
		logger:      logger.Named("StoryService"),
	}
}

// CreateStory создает историю и в той же транзакции добавляет создателя
// как владельца с принятым приглашением.
func (s *storyServiceImpl) CreateStory(ctx context.Context, creatorID uuid.UUID, input CreateStoryInput) (*models.Story, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	settings, err := models.ParseStorySettings(input.SettingsJSON)
	if err != nil {
		return nil, err
	}
	ageTier := input.AgeTier
	if ageTier == "" {
		ageTier = models.AgeTierUnverified
	}
	if !models.ValidAgeTier(ageTier) {
		return nil, fmt.Errorf("%w: unknown age tier %q", models.ErrInvalidInput, ageTier)
	}

	story := &models.Story{
		Title:           input.Title,
		Description:     input.Description,
		CreatorID:       creatorID,
		Status:          models.StoryStatusDraft,
		AgeTier:         ageTier,
		IsPrivate:       input.IsPrivate,
		AllowCollab:     input.AllowCollab,
		Settings:        settings,
		GenreIDs:        input.GenreIDs,
		ContentWarnings: input.ContentWarnings,
	}

	err = s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.storyRepo.Create(ctx, tx, story); err != nil {
			return err
		}
		owner := &models.StoryCollaborator{
			StoryID:            story.ID,
			UserID:             creatorID,
			Role:               models.RoleOwner,
			InvitationAccepted: true,
		}
		return s.collabRepo.Create(ctx, tx, owner)
	})
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	s.logger.Info("Story created",
		zap.String("storyID", story.ID.String()),
		zap.String("creatorID", creatorID.String()))
	return story, nil
}

// GetStory возвращает историю с учетом приватности: приватные истории видят
// только участники и модераторы.
func (s *storyServiceImpl) GetStory(ctx context.Context, callerID uuid.UUID, callerRoles []string, storyID uuid.UUID) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.IsPrivate && story.Status == models.StoryStatusPublished {
		return story, nil
	}
	if models.HasRole(callerRoles, models.UserRoleModerator) ||
		models.HasRole(callerRoles, models.UserRoleAdmin) ||
		models.HasRole(callerRoles, models.UserRoleSuperAdmin) {
		return story, nil
	}
	if _, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, callerID); err != nil {
		if !story.IsPrivate {
			// Непубличная, но и не приватная история видна всем аутентифицированным
			return story, nil
		}
		return nil, models.ErrStoryNotFound
	}
	return story, nil
}

func (s *storyServiceImpl) ListMyStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error) {
	return s.storyRepo.ListByCollaborator(ctx, userID, normalizeLimit(limit), offset)
}

func (s *storyServiceImpl) ListPublished(ctx context.Context, viewerTier models.AgeTier, limit, offset int) ([]models.Story, error) {
	if !models.ValidAgeTier(viewerTier) {
		viewerTier = models.AgeTierUnverified
	}
	return s.storyRepo.ListPublished(ctx, viewerTier, normalizeLimit(limit), offset)
}

// UpdateStory меняет параметры истории. Настройки патчатся поверх текущих;
// неизвестные ключи в патче - ошибка валидации.
func (s *storyServiceImpl) UpdateStory(ctx context.Context, callerID, storyID uuid.UUID, input UpdateStoryInput) (*models.Story, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageStory); err != nil {
		return nil, err
	}
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
		}
		story.Title = *input.Title
	}
	if input.Description != nil {
		story.Description = input.Description
	}
	if input.IsPrivate != nil {
		story.IsPrivate = *input.IsPrivate
	}
	if input.AllowCollab != nil {
		story.AllowCollab = *input.AllowCollab
	}
	if input.GenreIDs != nil {
		story.GenreIDs = input.GenreIDs
	}
	if input.ContentWarnings != nil {
		story.ContentWarnings = input.ContentWarnings
	}
	if len(input.SettingsJSON) > 0 {
		patched, err := patchSettings(story.Settings, input.SettingsJSON)
		if err != nil {
			return nil, err
		}
		story.Settings = patched
	}

	if err := s.storyRepo.Update(ctx, story); err != nil {
		return nil, fmt.Errorf("update story: %w", err)
	}
	return story, nil
}

// patchSettings декодирует патч поверх копии текущих настроек.
func patchSettings(current models.StorySettings, raw json.RawMessage) (models.StorySettings, error) {
	patched := current
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patched); err != nil {
		return current, fmt.Errorf("%w: %v", models.ErrInvalidSettings, err)
	}
	if err := patched.Validate(); err != nil {
		return current, err
	}
	return patched, nil
}

// storyStatusTransitions перечисляет допустимые переходы статусов.
var storyStatusTransitions = map[models.StoryStatus][]models.StoryStatus{
	models.StoryStatusDraft:           {models.StoryStatusInProgress, models.StoryStatusPendingApproval, models.StoryStatusArchived},
	models.StoryStatusInProgress:      {models.StoryStatusCompleted, models.StoryStatusPendingApproval, models.StoryStatusArchived},
	models.StoryStatusCompleted:       {models.StoryStatusPendingApproval, models.StoryStatusArchived, models.StoryStatusInProgress},
	models.StoryStatusPendingApproval: {models.StoryStatusPublished, models.StoryStatusInProgress},
	models.StoryStatusPublished:       {models.StoryStatusArchived},
	models.StoryStatusArchived:        {models.StoryStatusInProgress},
}

func statusTransitionAllowed(from, to models.StoryStatus) bool {
	for _, allowed := range storyStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ChangeStatus переводит историю в новый статус. Публикация из
// pending_approval доступна только модераторам.
func (s *storyServiceImpl) ChangeStatus(ctx context.Context, callerID uuid.UUID, callerRoles []string, storyID uuid.UUID, next models.StoryStatus) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !statusTransitionAllowed(story.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusChange, story.Status, next)
	}

	isModerator := models.HasRole(callerRoles, models.UserRoleModerator) ||
		models.HasRole(callerRoles, models.UserRoleAdmin) ||
		models.HasRole(callerRoles, models.UserRoleSuperAdmin)

	if next == models.StoryStatusPublished {
		if !isModerator {
			return nil, models.ErrForbidden
		}
	} else {
		if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageStory); err != nil {
			if !isModerator {
				return nil, err
			}
		}
	}

	if err := s.storyRepo.UpdateStatus(ctx, storyID, next); err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}
	story.Status = next

	if next == models.StoryStatusPublished {
		s.notifier.NotifyStoryPublished(ctx, story)
	}
	s.logger.Info("Story status changed",
		zap.String("storyID", storyID.String()),
		zap.String("status", string(next)))
	return story, nil
}

// DeleteStory удаляет историю; разрешено только владельцу.
func (s *storyServiceImpl) DeleteStory(ctx context.Context, callerID, storyID uuid.UUID) error {
	collab, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, callerID)
	if err != nil {
		return err
	}
	if collab.Role != models.RoleOwner {
		return models.ErrInsufficientRole
	}
	return s.storyRepo.Delete(ctx, storyID)
}

// InviteCollaborator приглашает пользователя в историю; роль owner недопустима.
func (s *storyServiceImpl) InviteCollaborator(ctx context.Context, callerID, storyID, inviteeID uuid.UUID, role models.CollaboratorRole) (*models.StoryCollaborator, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageCollaborators); err != nil {
		return nil, err
	}
	if role == models.RoleOwner {
		return nil, models.ErrOwnerImmutable
	}
	if !models.ValidCollaboratorRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.AllowCollab {
		return nil, fmt.Errorf("%w: story does not allow collaboration", models.ErrForbidden)
	}

	collab := &models.StoryCollaborator{
		StoryID: storyID,
		UserID:  inviteeID,
		Role:    role,
	}
	err = s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		return s.collabRepo.Create(ctx, tx, collab)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyInvitation(ctx, story, inviteeID, role)
	return collab, nil
}

func (s *storyServiceImpl) AcceptInvitation(ctx context.Context, userID, storyID uuid.UUID) error {
	return s.collabRepo.AcceptInvitation(ctx, storyID, userID)
}

// ChangeCollaboratorRole меняет роль участника; роль owner неизменяема
// в обе стороны.
func (s *storyServiceImpl) ChangeCollaboratorRole(ctx context.Context, callerID, storyID, targetID uuid.UUID, role models.CollaboratorRole) error {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageCollaborators); err != nil {
		return err
	}
	if role == models.RoleOwner {
		return models.ErrOwnerImmutable
	}
	if !models.ValidCollaboratorRole(role) {
		return fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, role)
	}
	target, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, targetID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleOwner {
		return models.ErrOwnerImmutable
	}
	return s.collabRepo.UpdateRole(ctx, storyID, targetID, role)
}

// RemoveCollaborator исключает участника; владельца исключить нельзя,
// но участник может выйти сам.
func (s *storyServiceImpl) RemoveCollaborator(ctx context.Context, callerID, storyID, targetID uuid.UUID) error {
	if callerID != targetID {
		if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageCollaborators); err != nil {
			return err
		}
	}
	target, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, targetID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleOwner {
		return models.ErrOwnerImmutable
	}
	return s.collabRepo.Remove(ctx, storyID, targetID)
}

func (s *storyServiceImpl) ListCollaborators(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StoryCollaborator, error) {
	if _, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, callerID); err != nil {
		return nil, err
	}
	return s.collabRepo.ListByStory(ctx, storyID)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

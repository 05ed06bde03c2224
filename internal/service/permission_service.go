package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// PermissionService разрешает права пользователя в рамках истории.
// Все мутирующие пути сервисов проходят через ResolveCapabilities,
// чтобы проверка прав была единообразной.
type PermissionService interface {
	// ResolveCapabilities возвращает набор прав пользователя в истории.
	// ErrNotCollaborator, если пользователь не участник.
	ResolveCapabilities(ctx context.Context, userID, storyID uuid.UUID) (models.CapabilitySet, error)
	// VerifyPermission проверяет наличие конкретного права.
	// ErrInsufficientRole, если участник есть, но права не хватает.
	VerifyPermission(ctx context.Context, userID, storyID uuid.UUID, required models.Capability) (*models.StoryCollaborator, error)
}

type permissionServiceImpl struct {
	collabRepo interfaces.CollaboratorRepository
	logger     *zap.Logger
}

func NewPermissionService(collabRepo interfaces.CollaboratorRepository, logger *zap.Logger) PermissionService {
	return &permissionServiceImpl{
		collabRepo: collabRepo,
		logger:     logger.Named("PermissionService"),
	}
}

func (s *permissionServiceImpl) ResolveCapabilities(ctx context.Context, userID, storyID uuid.UUID) (models.CapabilitySet, error) {
	collab, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, userID)
	if err != nil {
		return nil, err
	}
	if !collab.InvitationAccepted {
		// Участник, не принявший приглашение, может только смотреть
		return models.CapabilitySet{models.CapRead: {}}, nil
	}
	return models.CapabilitiesForRole(collab.Role), nil
}

func (s *permissionServiceImpl) VerifyPermission(ctx context.Context, userID, storyID uuid.UUID, required models.Capability) (*models.StoryCollaborator, error) {
	collab, err := s.collabRepo.GetByStoryAndUser(ctx, storyID, userID)
	if err != nil {
		return nil, fmt.Errorf("permission check: %w", err)
	}
	caps := models.CapabilitiesForRole(collab.Role)
	if !collab.InvitationAccepted {
		caps = models.CapabilitySet{models.CapRead: {}}
	}
	if !caps.Has(required) {
		s.logger.Debug("Permission denied",
			zap.String("userID", userID.String()),
			zap.String("storyID", storyID.String()),
			zap.String("role", string(collab.Role)),
			zap.String("required", string(required)))
		return nil, models.ErrInsufficientRole
	}
	return collab, nil
}

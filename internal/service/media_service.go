package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/messaging"
	"wove-server/internal/models"
)

const mediaPromptMaxLen = 500

// MediaService управляет жизненным циклом медиа-ассетов: создает строку
// pending, публикует задачу воркеру и применяет результат.
type MediaService interface {
	// RequestGeneration - явный запрос генерации (режим on_demand).
	RequestGeneration(ctx context.Context, callerID, storyID uuid.UUID, segmentID *uuid.UUID, kind models.MediaKind, prompt string) (*models.MediaAsset, error)
	// RequestAuto вызывается после добавления сегмента согласно частоте
	// в настройках истории. Ошибки логируются, не возвращаются.
	RequestAuto(ctx context.Context, story *models.Story, segment *models.StorySegment)
	// ApplyResult применяется консьюмером очереди результатов; идемпотентен.
	ApplyResult(ctx context.Context, result messaging.MediaResultPayload) error

	GetAsset(ctx context.Context, callerID, assetID uuid.UUID) (*models.MediaAsset, error)
	ListByStory(ctx context.Context, callerID, storyID uuid.UUID) ([]models.MediaAsset, error)
}

type mediaServiceImpl struct {
	mediaRepo   interfaces.MediaRepository
	storyRepo   interfaces.StoryRepository
	permissions PermissionService
	publisher   messaging.MediaTaskPublisher
	broadcaster interfaces.RoomBroadcaster
	notifier    NotificationService
	logger      *zap.Logger
}

func NewMediaService(
	mediaRepo interfaces.MediaRepository,
	storyRepo interfaces.StoryRepository,
	permissions PermissionService,
	publisher messaging.MediaTaskPublisher,
	broadcaster interfaces.RoomBroadcaster,
	notifier NotificationService,
	logger *zap.Logger,
) MediaService {
	return &mediaServiceImpl{
		mediaRepo:   mediaRepo,
		storyRepo:   storyRepo,
		permissions: permissions,
		publisher:   publisher,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger.Named("MediaService"),
	}
}

func (s *mediaServiceImpl) RequestGeneration(ctx context.Context, callerID, storyID uuid.UUID, segmentID *uuid.UUID, kind models.MediaKind, prompt string) (*models.MediaAsset, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return nil, err
	}
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.MediaKindImage:
		if !story.Settings.AllowAIImages {
			return nil, fmt.Errorf("%w: AI images are disabled for this story", models.ErrInvalidInput)
		}
	case models.MediaKindAudio:
		if !story.Settings.AllowAIAudio {
			return nil, fmt.Errorf("%w: AI audio is disabled for this story", models.ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown media kind %q", models.ErrInvalidInput, kind)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", models.ErrInvalidInput)
	}
	return s.enqueue(ctx, story, segmentID, kind, prompt)
}

// RequestAuto решает, нужна ли генерация для нового сегмента: частота high -
// каждый сегмент, medium - каждый третий, low - каждый десятый.
func (s *mediaServiceImpl) RequestAuto(ctx context.Context, story *models.Story, segment *models.StorySegment) {
	interval := story.Settings.MediaEverySegments()
	if interval == 0 || !story.Settings.AllowAIImages {
		return
	}
	// Позиции считаются с нуля: при high триггерится каждый сегмент
	if (segment.Position+1)%interval != 0 {
		return
	}

	prompt := segment.Content
	if len(prompt) > mediaPromptMaxLen {
		prompt = prompt[:mediaPromptMaxLen]
	}
	if _, err := s.enqueue(ctx, story, &segment.ID, models.MediaKindImage, prompt); err != nil {
		s.logger.Warn("Auto media generation request failed",
			zap.Error(err),
			zap.String("storyID", story.ID.String()),
			zap.String("segmentID", segment.ID.String()))
	}
}

func (s *mediaServiceImpl) enqueue(ctx context.Context, story *models.Story, segmentID *uuid.UUID, kind models.MediaKind, prompt string) (*models.MediaAsset, error) {
	asset := &models.MediaAsset{
		StoryID:   story.ID,
		SegmentID: segmentID,
		Kind:      kind,
		Status:    models.MediaStatusPending,
		Prompt:    prompt,
	}
	if err := s.mediaRepo.Create(ctx, asset); err != nil {
		return nil, err
	}

	payload := messaging.MediaTaskPayload{
		AssetID:   asset.ID,
		StoryID:   story.ID,
		SegmentID: segmentID,
		Kind:      string(kind),
		Prompt:    prompt,
	}
	if err := s.publisher.PublishMediaTask(ctx, payload); err != nil {
		errDetails := "failed to enqueue generation task"
		if updErr := s.mediaRepo.UpdateStatus(ctx, asset.ID, models.MediaStatusFailed, nil, nil, &errDetails); updErr != nil {
			s.logger.Error("Failed to mark asset failed after publish error", zap.Error(updErr))
		}
		return nil, fmt.Errorf("enqueue media task: %w", err)
	}

	s.logger.Info("Media generation requested",
		zap.String("assetID", asset.ID.String()),
		zap.String("storyID", story.ID.String()),
		zap.String("kind", string(kind)))
	return asset, nil
}

// ApplyResult переводит ассет в ready/failed. Повторная доставка результата
// для уже готового ассета - no-op.
func (s *mediaServiceImpl) ApplyResult(ctx context.Context, result messaging.MediaResultPayload) error {
	asset, err := s.mediaRepo.GetByID(ctx, result.AssetID)
	if err != nil {
		return err
	}
	if asset.Status == models.MediaStatusReady || asset.Status == models.MediaStatusFailed {
		s.logger.Debug("Duplicate media result ignored", zap.String("assetID", asset.ID.String()))
		return nil
	}

	if result.Success {
		if err := s.mediaRepo.UpdateStatus(ctx, asset.ID, models.MediaStatusReady, &result.URL, &result.Provider, nil); err != nil {
			return err
		}
		asset.Status = models.MediaStatusReady
		asset.URL = &result.URL
		asset.Provider = &result.Provider

		s.broadcaster.BroadcastToStory(asset.StoryID, models.EventMediaReady, models.MediaReadyPayload{
			StoryID: asset.StoryID,
			Asset:   *asset,
		})
		if story, err := s.storyRepo.GetByID(ctx, asset.StoryID); err == nil {
			s.notifier.NotifyMediaReady(ctx, asset, []uuid.UUID{story.CreatorID})
		}
		return nil
	}

	errDetails := result.Error
	if err := s.mediaRepo.UpdateStatus(ctx, asset.ID, models.MediaStatusFailed, nil, nil, &errDetails); err != nil {
		return err
	}
	s.logger.Warn("Media generation failed",
		zap.String("assetID", asset.ID.String()),
		zap.String("error", result.Error))
	return nil
}

func (s *mediaServiceImpl) GetAsset(ctx context.Context, callerID, assetID uuid.UUID) (*models.MediaAsset, error) {
	asset, err := s.mediaRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if _, err := s.permissions.ResolveCapabilities(ctx, callerID, asset.StoryID); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *mediaServiceImpl) ListByStory(ctx context.Context, callerID, storyID uuid.UUID) ([]models.MediaAsset, error) {
	if _, err := s.permissions.ResolveCapabilities(ctx, callerID, storyID); err != nil {
		return nil, err
	}
	return s.mediaRepo.ListByStory(ctx, storyID)
}

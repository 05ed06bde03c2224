package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"wove-server/internal/ai"
	"wove-server/internal/interfaces"
	"wove-server/internal/models"
	"wove-server/pkg/taskmanager"
)

// NarrativeService - ядро совместного написания: сегменты, очередность ходов,
// точки ветвления и AI-продолжения. Все операции, назначающие позиции или ход,
// проходят через одну транзакцию с блокировкой строки истории.
type NarrativeService interface {
	AddSegment(ctx context.Context, callerID, storyID uuid.UUID, content string) (*models.StorySegment, error)
	// AddAISegment генерирует продолжение и добавляет его как сегмент.
	// Доступно только в режиме co_write.
	AddAISegment(ctx context.Context, callerID, storyID uuid.UUID) (*models.StorySegment, error)
	ListSegments(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StorySegment, error)
	DeleteSegment(ctx context.Context, callerID, storyID, segmentID uuid.UUID) error
	// ReorderSegments принимает полную перестановку ID сегментов истории.
	ReorderSegments(ctx context.Context, callerID, storyID uuid.UUID, orderedIDs []uuid.UUID) error

	CreateBranchPoint(ctx context.Context, callerID, storyID, sourceSegmentID uuid.UUID, promptText *string, options []string) (*models.StoryBranchPoint, error)
	ListBranchPoints(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StoryBranchPoint, error)
	// ResolveBranch делает выбор ровно один раз и создает новый сегмент
	// с переданным текстом в той же транзакции. Пустой firstSegmentContent
	// заменяется текстом выбранного варианта.
	ResolveBranch(ctx context.Context, callerID, branchID, optionID uuid.UUID, firstSegmentContent string) (*models.StorySegment, error)

	RequestTurn(ctx context.Context, callerID, storyID uuid.UUID) error
	ReleaseTurn(ctx context.Context, callerID, storyID uuid.UUID) error

	// SuggestContinuation возвращает черновик продолжения, ничего не сохраняя.
	SuggestContinuation(ctx context.Context, callerID, storyID uuid.UUID) (string, error)
}

type narrativeServiceImpl struct {
	txRunner       interfaces.TxRunner
	storyRepo      interfaces.StoryRepository
	segmentRepo    interfaces.SegmentRepository
	collabRepo     interfaces.CollaboratorRepository
	branchRepo     interfaces.BranchRepository
	permissions    PermissionService
	memoryScanner  MemoryScanner
	contextBuilder AIContextBuilder
	aiProvider     ai.Provider
	defaultAIMode  models.AIMode
	mediaService   MediaService
	notifier       NotificationService
	broadcaster    interfaces.RoomBroadcaster
	tasks          *taskmanager.Manager
	logger         *zap.Logger
}

func NewNarrativeService(
	txRunner interfaces.TxRunner,
	storyRepo interfaces.StoryRepository,
	segmentRepo interfaces.SegmentRepository,
	collabRepo interfaces.CollaboratorRepository,
	branchRepo interfaces.BranchRepository,
	permissions PermissionService,
	memoryScanner MemoryScanner,
	contextBuilder AIContextBuilder,
	aiProvider ai.Provider,
	defaultAIMode models.AIMode,
	mediaService MediaService,
	notifier NotificationService,
	broadcaster interfaces.RoomBroadcaster,
	tasks *taskmanager.Manager,
	logger *zap.Logger,
) NarrativeService {
	return &narrativeServiceImpl{
		txRunner:       txRunner,
		storyRepo:      storyRepo,
		segmentRepo:    segmentRepo,
		collabRepo:     collabRepo,
		branchRepo:     branchRepo,
		permissions:    permissions,
		memoryScanner:  memoryScanner,
		contextBuilder: contextBuilder,
		aiProvider:     aiProvider,
		defaultAIMode:  defaultAIMode,
		mediaService:   mediaService,
		notifier:       notifier,
		broadcaster:    broadcaster,
		tasks:          tasks,
		logger:         logger.Named("NarrativeService"),
	}
}

// turnChange - результат продвижения хода внутри транзакции.
type turnChange struct {
	nextUserID *uuid.UUID
	changed    bool
}

func (s *narrativeServiceImpl) AddSegment(ctx context.Context, callerID, storyID uuid.UUID, content string) (*models.StorySegment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.ErrEmptyContent
	}
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return nil, err
	}

	segment := &models.StorySegment{
		StoryID:   storyID,
		CreatorID: callerID,
		Content:   content,
	}
	story, turn, err := s.appendSegment(ctx, storyID, callerID, segment)
	if err != nil {
		return nil, err
	}

	s.afterAppend(ctx, story, segment, turn)
	return segment, nil
}

func (s *narrativeServiceImpl) AddAISegment(ctx context.Context, callerID, storyID uuid.UUID) (*models.StorySegment, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return nil, err
	}
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.Settings.EffectiveAIMode(s.defaultAIMode) != models.AIModeCoWrite {
		return nil, fmt.Errorf("%w: AI co-writing is not enabled for this story", models.ErrInvalidInput)
	}

	content, err := s.generate(ctx, story)
	if err != nil {
		return nil, err
	}

	segment := &models.StorySegment{
		StoryID:       storyID,
		CreatorID:     callerID,
		Content:       content,
		IsAIGenerated: true,
	}
	lockedStory, turn, err := s.appendSegment(ctx, storyID, callerID, segment)
	if err != nil {
		return nil, err
	}

	s.afterAppend(ctx, lockedStory, segment, turn)
	return segment, nil
}

// appendSegment выполняет транзакционную часть добавления: блокировка истории,
// назначение следующей позиции, вставка, инкремент вклада и продвижение хода.
func (s *narrativeServiceImpl) appendSegment(ctx context.Context, storyID, actorID uuid.UUID, segment *models.StorySegment) (*models.Story, *turnChange, error) {
	var (
		story *models.Story
		turn  *turnChange
	)
	err := s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		story, err = s.storyRepo.GetForUpdateTx(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if !story.Status.IsWritable() {
			return models.ErrStoryNotWritable
		}

		maxPos, err := s.segmentRepo.MaxPositionTx(ctx, tx, storyID)
		if err != nil {
			return err
		}
		segment.Position = maxPos + 1

		if err := s.segmentRepo.CreateTx(ctx, tx, segment); err != nil {
			return err
		}
		if err := s.collabRepo.IncrementContributionTx(ctx, tx, storyID, actorID); err != nil {
			return err
		}

		turn, err = s.advanceTurnTx(ctx, tx, story, actorID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return story, turn, nil
}

// advanceTurnTx передает ход следующему принятому участнику по кругу
// в порядке присоединения. Если действующий пользователь отсутствует
// в списке, ход явно уходит к самому раннему участнику.
func (s *narrativeServiceImpl) advanceTurnTx(ctx context.Context, tx pgx.Tx, story *models.Story, actorID uuid.UUID) (*turnChange, error) {
	// Очередность ходов существует только в совместных историях.
	if !story.AllowCollab {
		return &turnChange{}, nil
	}

	collabs, err := s.collabRepo.ListByStoryTx(ctx, tx, story.ID)
	if err != nil {
		return nil, err
	}

	accepted := collabs[:0]
	for _, c := range collabs {
		if c.InvitationAccepted {
			accepted = append(accepted, c)
		}
	}
	if len(accepted) == 0 {
		return &turnChange{}, nil
	}

	actorIdx := -1
	for i, c := range accepted {
		if c.UserID == actorID {
			actorIdx = i
			break
		}
	}

	var next uuid.UUID
	if actorIdx == -1 {
		next = accepted[0].UserID
		s.logger.Warn("Acting user is not an accepted collaborator, turn passes to the earliest-joined participant",
			zap.String("storyID", story.ID.String()),
			zap.String("actorID", actorID.String()),
			zap.String("nextUserID", next.String()))
	} else {
		next = accepted[(actorIdx+1)%len(accepted)].UserID
	}

	if story.CurrentTurnUserID != nil && *story.CurrentTurnUserID == next {
		return &turnChange{nextUserID: &next}, nil
	}
	if err := s.storyRepo.SetCurrentTurnTx(ctx, tx, story.ID, &next); err != nil {
		return nil, err
	}
	story.CurrentTurnUserID = &next
	return &turnChange{nextUserID: &next, changed: true}, nil
}

// afterAppend выполняет побочные эффекты после коммита. Их сбои логируются
// и никогда не проваливают саму операцию добавления.
func (s *narrativeServiceImpl) afterAppend(ctx context.Context, story *models.Story, segment *models.StorySegment, turn *turnChange) {
	seg := *segment
	s.tasks.Submit("memory_scan", func(taskCtx context.Context) error {
		return s.memoryScanner.ScanSegment(taskCtx, seg.StoryID, &seg)
	})

	s.broadcaster.BroadcastToStory(story.ID, models.EventContentUpdate, models.ContentUpdatePayload{
		StoryID: story.ID,
		Segment: seg,
	})

	s.mediaService.RequestAuto(ctx, story, segment)

	if turn != nil && turn.changed && turn.nextUserID != nil {
		s.broadcaster.BroadcastToStory(story.ID, models.EventGrantTurn, models.GrantTurnPayload{
			StoryID: story.ID,
			UserID:  *turn.nextUserID,
		})
		s.notifier.NotifyTurnGranted(ctx, story, *turn.nextUserID)
	}
}

func (s *narrativeServiceImpl) ListSegments(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StorySegment, error) {
	if err := s.verifyRead(ctx, callerID, storyID); err != nil {
		return nil, err
	}
	return s.segmentRepo.ListByStory(ctx, storyID)
}

func (s *narrativeServiceImpl) DeleteSegment(ctx context.Context, callerID, storyID, segmentID uuid.UUID) error {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageStory); err != nil {
		return err
	}
	err := s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.storyRepo.GetForUpdateTx(ctx, tx, storyID); err != nil {
			return err
		}
		return s.segmentRepo.DeleteTx(ctx, tx, storyID, segmentID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Segment deleted",
		zap.String("storyID", storyID.String()),
		zap.String("segmentID", segmentID.String()))
	return nil
}

func (s *narrativeServiceImpl) ReorderSegments(ctx context.Context, callerID, storyID uuid.UUID, orderedIDs []uuid.UUID) error {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapManageStory); err != nil {
		return err
	}
	return s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.storyRepo.GetForUpdateTx(ctx, tx, storyID); err != nil {
			return err
		}
		// Блокировка истории исключает конкурентные изменения набора
		// сегментов, поэтому список можно читать вне транзакции.
		existing, err := s.segmentRepo.ListByStory(ctx, storyID)
		if err != nil {
			return err
		}
		if len(orderedIDs) != len(existing) {
			return models.ErrInvalidPermutation
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if seen[id] {
				return models.ErrInvalidPermutation
			}
			seen[id] = true
		}
		for _, seg := range existing {
			if !seen[seg.ID] {
				return models.ErrInvalidPermutation
			}
		}
		return s.segmentRepo.ReorderTx(ctx, tx, storyID, orderedIDs)
	})
}

func (s *narrativeServiceImpl) CreateBranchPoint(ctx context.Context, callerID, storyID, sourceSegmentID uuid.UUID, promptText *string, options []string) (*models.StoryBranchPoint, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return nil, err
	}
	if len(options) < 2 {
		return nil, models.ErrNotEnoughOptions
	}
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, fmt.Errorf("%w: option text must not be empty", models.ErrInvalidInput)
		}
	}

	source, err := s.segmentRepo.GetByID(ctx, sourceSegmentID)
	if err != nil {
		return nil, err
	}
	if source.StoryID != storyID {
		return nil, models.ErrSegmentNotFound
	}

	bp := &models.StoryBranchPoint{
		StoryID:         storyID,
		SourceSegmentID: sourceSegmentID,
		PromptText:      promptText,
	}
	for i, opt := range options {
		bp.Options = append(bp.Options, models.StoryChoiceOption{
			OptionText:   opt,
			DisplayOrder: i,
		})
	}

	err = s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		return s.branchRepo.CreateTx(ctx, tx, bp)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Branch point created",
		zap.String("storyID", storyID.String()),
		zap.String("branchPointID", bp.ID.String()),
		zap.Int("options", len(bp.Options)))
	return bp, nil
}

func (s *narrativeServiceImpl) ListBranchPoints(ctx context.Context, callerID, storyID uuid.UUID) ([]models.StoryBranchPoint, error) {
	if err := s.verifyRead(ctx, callerID, storyID); err != nil {
		return nil, err
	}
	return s.branchRepo.ListByStory(ctx, storyID)
}

func (s *narrativeServiceImpl) ResolveBranch(ctx context.Context, callerID, branchID, optionID uuid.UUID, firstSegmentContent string) (*models.StorySegment, error) {
	// Проверка прав требует storyID, поэтому точка читается дважды:
	// сперва без блокировки для авторизации, затем FOR UPDATE в транзакции.
	bp, err := s.branchRepo.GetByID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.permissions.VerifyPermission(ctx, callerID, bp.StoryID, models.CapResolveBranch); err != nil {
		return nil, err
	}

	var (
		story   *models.Story
		segment *models.StorySegment
		turn    *turnChange
	)
	err = s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.branchRepo.GetForUpdateTx(ctx, tx, branchID)
		if err != nil {
			return err
		}
		if locked.Resolved() {
			return models.ErrBranchAlreadyResolved
		}

		var chosen *models.StoryChoiceOption
		for i := range locked.Options {
			if locked.Options[i].ID == optionID {
				chosen = &locked.Options[i]
				break
			}
		}
		if chosen == nil {
			return models.ErrChoiceOptionInvalid
		}

		content := strings.TrimSpace(firstSegmentContent)
		if content == "" {
			content = chosen.OptionText
		}

		story, err = s.storyRepo.GetForUpdateTx(ctx, tx, locked.StoryID)
		if err != nil {
			return err
		}
		if !story.Status.IsWritable() {
			return models.ErrStoryNotWritable
		}

		maxPos, err := s.segmentRepo.MaxPositionTx(ctx, tx, story.ID)
		if err != nil {
			return err
		}
		segment = &models.StorySegment{
			StoryID:              story.ID,
			CreatorID:            callerID,
			Content:              content,
			Position:             maxPos + 1,
			ParentChoiceOptionID: &optionID,
		}
		if err := s.segmentRepo.CreateTx(ctx, tx, segment); err != nil {
			return err
		}
		if err := s.collabRepo.IncrementContributionTx(ctx, tx, story.ID, callerID); err != nil {
			return err
		}
		if err := s.branchRepo.ResolveTx(ctx, tx, branchID, optionID, segment.ID); err != nil {
			return err
		}

		turn, err = s.advanceTurnTx(ctx, tx, story, callerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastToStory(story.ID, models.EventBranchResolved, models.BranchResolvedPayload{
		StoryID:           story.ID,
		BranchPointID:     branchID,
		SelectedOptionID:  optionID,
		NewSegmentID:      segment.ID,
		NewSegmentContent: segment.Content,
		Segment:           *segment,
	})
	s.afterAppend(ctx, story, segment, turn)

	s.logger.Info("Branch point resolved",
		zap.String("branchPointID", branchID.String()),
		zap.String("optionID", optionID.String()),
		zap.String("newSegmentID", segment.ID.String()))
	return segment, nil
}

func (s *narrativeServiceImpl) RequestTurn(ctx context.Context, callerID, storyID uuid.UUID) error {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return err
	}
	var granted bool
	err := s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		story, err := s.storyRepo.GetForUpdateTx(ctx, tx, storyID)
		if err != nil {
			return err
		}
		// Ход можно взять, только если он никому не назначен.
		if story.CurrentTurnUserID != nil {
			if *story.CurrentTurnUserID == callerID {
				return nil
			}
			return fmt.Errorf("%w: turn is currently held by another collaborator", models.ErrForbidden)
		}
		if err := s.storyRepo.SetCurrentTurnTx(ctx, tx, storyID, &callerID); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return err
	}
	if granted {
		s.broadcaster.BroadcastToStory(storyID, models.EventGrantTurn, models.GrantTurnPayload{
			StoryID: storyID,
			UserID:  callerID,
		})
	}
	return nil
}

func (s *narrativeServiceImpl) ReleaseTurn(ctx context.Context, callerID, storyID uuid.UUID) error {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return err
	}
	var (
		story *models.Story
		turn  *turnChange
	)
	err := s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		story, err = s.storyRepo.GetForUpdateTx(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story.CurrentTurnUserID == nil || *story.CurrentTurnUserID != callerID {
			return fmt.Errorf("%w: turn is not held by the caller", models.ErrForbidden)
		}
		turn, err = s.advanceTurnTx(ctx, tx, story, callerID)
		return err
	})
	if err != nil {
		return err
	}
	if turn != nil && turn.changed && turn.nextUserID != nil {
		s.broadcaster.BroadcastToStory(storyID, models.EventGrantTurn, models.GrantTurnPayload{
			StoryID: storyID,
			UserID:  *turn.nextUserID,
		})
		s.notifier.NotifyTurnGranted(ctx, story, *turn.nextUserID)
	}
	return nil
}

func (s *narrativeServiceImpl) SuggestContinuation(ctx context.Context, callerID, storyID uuid.UUID) (string, error) {
	if _, err := s.permissions.VerifyPermission(ctx, callerID, storyID, models.CapWriteSegment); err != nil {
		return "", err
	}
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return "", err
	}
	if story.Settings.EffectiveAIMode(s.defaultAIMode) == models.AIModeNone {
		return "", fmt.Errorf("%w: AI assistance is disabled for this story", models.ErrInvalidInput)
	}
	return s.generate(ctx, story)
}

func (s *narrativeServiceImpl) generate(ctx context.Context, story *models.Story) (string, error) {
	prompt, err := s.contextBuilder.BuildPrompt(ctx, story)
	if err != nil {
		return "", err
	}
	text, err := s.aiProvider.GenerateText(ctx, prompt)
	if err != nil {
		s.logger.Error("AI generation failed",
			zap.Error(err),
			zap.String("storyID", story.ID.String()),
			zap.String("provider", s.aiProvider.Name()))
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// verifyRead разрешает чтение коллаборантам и любому пользователю
// для опубликованных публичных историй.
func (s *narrativeServiceImpl) verifyRead(ctx context.Context, callerID, storyID uuid.UUID) error {
	caps, err := s.permissions.ResolveCapabilities(ctx, callerID, storyID)
	if err == nil && caps.Has(models.CapRead) {
		return nil
	}
	story, getErr := s.storyRepo.GetByID(ctx, storyID)
	if getErr != nil {
		return getErr
	}
	if !story.IsPrivate {
		return nil
	}
	// Приватные истории для посторонних неотличимы от несуществующих.
	return models.ErrStoryNotFound
}

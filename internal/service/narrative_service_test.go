package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	imocks "wove-server/internal/interfaces/mocks"
	"wove-server/internal/models"
	"wove-server/internal/service"
	smocks "wove-server/internal/service/mocks"
	"wove-server/pkg/taskmanager"
)

// narrativeEnv собирает сервис нарратива поверх моков.
// PermissionService используется настоящий, чтобы тесты проверяли
// реальное отображение ролей в права.
type narrativeEnv struct {
	txRunner    *imocks.TxRunner
	storyRepo   *imocks.StoryRepository
	segmentRepo *imocks.SegmentRepository
	collabRepo  *imocks.CollaboratorRepository
	branchRepo  *imocks.BranchRepository
	scanner     *smocks.MemoryScanner
	builder     *smocks.AIContextBuilder
	provider    *smocks.AIProvider
	media       *smocks.MediaService
	notifier    *smocks.NotificationService
	broadcaster *imocks.RoomBroadcaster
	svc         service.NarrativeService
}

func newNarrativeEnv() *narrativeEnv {
	env := &narrativeEnv{
		txRunner:    new(imocks.TxRunner),
		storyRepo:   new(imocks.StoryRepository),
		segmentRepo: new(imocks.SegmentRepository),
		collabRepo:  new(imocks.CollaboratorRepository),
		branchRepo:  new(imocks.BranchRepository),
		scanner:     new(smocks.MemoryScanner),
		builder:     new(smocks.AIContextBuilder),
		provider:    new(smocks.AIProvider),
		media:       new(smocks.MediaService),
		notifier:    new(smocks.NotificationService),
		broadcaster: new(imocks.RoomBroadcaster),
	}
	env.svc = service.NewNarrativeService(
		env.txRunner,
		env.storyRepo,
		env.segmentRepo,
		env.collabRepo,
		env.branchRepo,
		service.NewPermissionService(env.collabRepo, zap.NewNop()),
		env.scanner,
		env.builder,
		env.provider,
		models.AIModeNone,
		env.media,
		env.notifier,
		env.broadcaster,
		taskmanager.New(taskmanager.Config{Workers: 1, QueueSize: 16}),
		zap.NewNop(),
	)
	return env
}

func acceptedCollab(storyID, userID uuid.UUID, role models.CollaboratorRole, joined time.Time) models.StoryCollaborator {
	return models.StoryCollaborator{
		ID:                 uuid.New(),
		StoryID:            storyID,
		UserID:             userID,
		Role:               role,
		InvitationAccepted: true,
		CreatedAt:          joined,
	}
}

func writableStory(storyID uuid.UUID, currentTurn *uuid.UUID) *models.Story {
	return &models.Story{
		ID:                storyID,
		Title:             "Тестовая история",
		Status:            models.StoryStatusInProgress,
		AllowCollab:       true,
		Settings:          models.DefaultStorySettings(),
		CurrentTurnUserID: currentTurn,
	}
}

func TestAddSegment(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	userA := uuid.New()
	userB := uuid.New()
	userC := uuid.New()
	base := time.Now()

	t.Run("Turn passes to the next accepted collaborator in join order", func(t *testing.T) {
		env := newNarrativeEnv()
		collabA := acceptedCollab(storyID, userA, models.RoleContributor, base)

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).Return(&collabA, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &userA), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(4, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(seg *models.StorySegment) bool {
			return seg.Position == 5 && seg.Content == "Дракон проснулся." && !seg.IsAIGenerated
		})).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, userA).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).Return([]models.StoryCollaborator{
			collabA,
			acceptedCollab(storyID, userB, models.RoleContributor, base.Add(time.Minute)),
			acceptedCollab(storyID, userC, models.RoleAuthor, base.Add(2*time.Minute)),
		}, nil).Once()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.MatchedBy(func(u *uuid.UUID) bool {
			return u != nil && *u == userB
		})).Return(nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventContentUpdate, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventGrantTurn, mock.MatchedBy(func(p models.GrantTurnPayload) bool {
			return p.UserID == userB
		})).Return().Once()
		env.notifier.On("NotifyTurnGranted", mock.Anything, mock.Anything, userB).Return().Once()

		seg, err := env.svc.AddSegment(ctx, userA, storyID, "Дракон проснулся.")
		require.NoError(t, err)
		assert.Equal(t, 5, seg.Position)

		env.storyRepo.AssertExpectations(t)
		env.broadcaster.AssertExpectations(t)
		env.notifier.AssertExpectations(t)
	})

	t.Run("Turn wraps around from the last collaborator to the first", func(t *testing.T) {
		env := newNarrativeEnv()
		collabC := acceptedCollab(storyID, userC, models.RoleContributor, base.Add(2*time.Minute))

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userC).Return(&collabC, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &userC), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(0, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, userC).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).Return([]models.StoryCollaborator{
			acceptedCollab(storyID, userA, models.RoleOwner, base),
			acceptedCollab(storyID, userB, models.RoleContributor, base.Add(time.Minute)),
			collabC,
		}, nil).Once()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.MatchedBy(func(u *uuid.UUID) bool {
			return u != nil && *u == userA
		})).Return(nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventContentUpdate, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventGrantTurn, mock.Anything).Return().Once()
		env.notifier.On("NotifyTurnGranted", mock.Anything, mock.Anything, userA).Return().Once()

		_, err := env.svc.AddSegment(ctx, userC, storyID, "Финал главы.")
		require.NoError(t, err)
		env.storyRepo.AssertExpectations(t)
	})

	t.Run("Turn is not assigned when collaboration is disabled", func(t *testing.T) {
		env := newNarrativeEnv()
		collabA := acceptedCollab(storyID, userA, models.RoleOwner, base)
		story := writableStory(storyID, nil)
		story.AllowCollab = false

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).Return(&collabA, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).Return(story, nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(2, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, userA).Return(nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventContentUpdate, mock.Anything).Return().Once()

		_, err := env.svc.AddSegment(ctx, userA, storyID, "Личная запись.")
		require.NoError(t, err)
		env.collabRepo.AssertNotCalled(t, "ListByStoryTx", mock.Anything, mock.Anything, mock.Anything)
		env.storyRepo.AssertNotCalled(t, "SetCurrentTurnTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		env.broadcaster.AssertNotCalled(t, "BroadcastToStory", storyID, models.EventGrantTurn, mock.Anything)
		env.notifier.AssertNotCalled(t, "NotifyTurnGranted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unchanged turn is not re-broadcast", func(t *testing.T) {
		env := newNarrativeEnv()
		collabA := acceptedCollab(storyID, userA, models.RoleContributor, base)

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).Return(&collabA, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		// Единственный принятый участник: следующий ход снова его.
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &userA), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(-1, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(seg *models.StorySegment) bool {
			return seg.Position == 0
		})).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, userA).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).
			Return([]models.StoryCollaborator{collabA}, nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventContentUpdate, mock.Anything).Return().Once()

		_, err := env.svc.AddSegment(ctx, userA, storyID, "Первый сегмент.")
		require.NoError(t, err)

		env.storyRepo.AssertNotCalled(t, "SetCurrentTurnTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		env.broadcaster.AssertNotCalled(t, "BroadcastToStory", storyID, models.EventGrantTurn, mock.Anything)
		env.notifier.AssertNotCalled(t, "NotifyTurnGranted", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Absent actor passes the turn to the earliest-joined collaborator", func(t *testing.T) {
		env := newNarrativeEnv()
		moderator := uuid.New()
		// Участника убрали из истории между проверкой прав и транзакцией.
		collabMod := acceptedCollab(storyID, moderator, models.RoleEditor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, moderator).
			Return(&collabMod, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, nil), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(2, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, moderator).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).Return([]models.StoryCollaborator{
			acceptedCollab(storyID, userB, models.RoleContributor, base.Add(time.Minute)),
			acceptedCollab(storyID, userC, models.RoleContributor, base.Add(2*time.Minute)),
		}, nil).Once()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.MatchedBy(func(u *uuid.UUID) bool {
			return u != nil && *u == userB
		})).Return(nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, mock.Anything, mock.Anything).Return()
		env.notifier.On("NotifyTurnGranted", mock.Anything, mock.Anything, userB).Return().Once()

		_, err := env.svc.AddSegment(ctx, moderator, storyID, "Правка модератора.")
		require.NoError(t, err)
		env.storyRepo.AssertExpectations(t)
	})

	t.Run("Empty content is rejected", func(t *testing.T) {
		env := newNarrativeEnv()
		_, err := env.svc.AddSegment(ctx, userA, storyID, "   \n\t ")
		assert.ErrorIs(t, err, models.ErrEmptyContent)
	})

	t.Run("Reader role cannot write segments", func(t *testing.T) {
		env := newNarrativeEnv()
		reader := acceptedCollab(storyID, userA, models.RoleReader, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).Return(&reader, nil).Once()

		_, err := env.svc.AddSegment(ctx, userA, storyID, "Попытка записи.")
		assert.ErrorIs(t, err, models.ErrInsufficientRole)
	})

	t.Run("Non-collaborator cannot write segments", func(t *testing.T) {
		env := newNarrativeEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).
			Return(nil, models.ErrNotCollaborator).Once()

		_, err := env.svc.AddSegment(ctx, userA, storyID, "Чужой текст.")
		assert.ErrorIs(t, err, models.ErrNotCollaborator)
	})

	t.Run("Completed story does not accept segments", func(t *testing.T) {
		env := newNarrativeEnv()
		collabA := acceptedCollab(storyID, userA, models.RoleContributor, base)
		story := writableStory(storyID, nil)
		story.Status = models.StoryStatusCompleted

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, userA).Return(&collabA, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).Return(story, nil).Once()

		_, err := env.svc.AddSegment(ctx, userA, storyID, "Поздний текст.")
		assert.ErrorIs(t, err, models.ErrStoryNotWritable)
		env.segmentRepo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResolveBranch(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	branchID := uuid.New()
	caller := uuid.New()
	base := time.Now()

	branchPoint := func(resolved bool) *models.StoryBranchPoint {
		bp := &models.StoryBranchPoint{
			ID:              branchID,
			StoryID:         storyID,
			SourceSegmentID: uuid.New(),
			Options: []models.StoryChoiceOption{
				{ID: uuid.New(), BranchPointID: branchID, OptionText: "Пойти налево", DisplayOrder: 0},
				{ID: uuid.New(), BranchPointID: branchID, OptionText: "Пойти направо", DisplayOrder: 1},
			},
		}
		if resolved {
			resolvedAt := base.Add(-time.Hour)
			bp.SelectedOptionID = &bp.Options[0].ID
			bp.ResolvedAt = &resolvedAt
		}
		return bp
	}

	t.Run("Resolving creates a segment from the caller's content", func(t *testing.T) {
		env := newNarrativeEnv()
		bp := branchPoint(false)
		chosen := bp.Options[1]
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)

		env.branchRepo.On("GetByID", ctx, branchID).Return(bp, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.branchRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, branchID).Return(bp, nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &caller), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(7, nil).Once()
		// Содержимым сегмента становится текст резолвящего, а не текст варианта.
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(seg *models.StorySegment) bool {
			return seg.Content == "Они свернули направо и вышли к реке." &&
				seg.Position == 8 &&
				seg.ParentChoiceOptionID != nil && *seg.ParentChoiceOptionID == chosen.ID
		})).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, caller).Return(nil).Once()
		env.branchRepo.On("ResolveTx", mock.Anything, mock.Anything, branchID, chosen.ID, mock.Anything).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).
			Return([]models.StoryCollaborator{collab}, nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventBranchResolved, mock.MatchedBy(func(p models.BranchResolvedPayload) bool {
			return p.BranchPointID == branchID && p.SelectedOptionID == chosen.ID &&
				p.NewSegmentContent == "Они свернули направо и вышли к реке."
		})).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventContentUpdate, mock.Anything).Return().Once()

		seg, err := env.svc.ResolveBranch(ctx, caller, branchID, chosen.ID, "Они свернули направо и вышли к реке.")
		require.NoError(t, err)
		assert.Equal(t, "Они свернули направо и вышли к реке.", seg.Content)
		env.branchRepo.AssertExpectations(t)
		env.broadcaster.AssertExpectations(t)
	})

	t.Run("Empty content falls back to the option text", func(t *testing.T) {
		env := newNarrativeEnv()
		bp := branchPoint(false)
		chosen := bp.Options[0]
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)

		env.branchRepo.On("GetByID", ctx, branchID).Return(bp, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.branchRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, branchID).Return(bp, nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &caller), nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(0, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(seg *models.StorySegment) bool {
			return seg.Content == "Пойти налево"
		})).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, caller).Return(nil).Once()
		env.branchRepo.On("ResolveTx", mock.Anything, mock.Anything, branchID, chosen.ID, mock.Anything).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).
			Return([]models.StoryCollaborator{collab}, nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, mock.Anything, mock.Anything).Return()

		seg, err := env.svc.ResolveBranch(ctx, caller, branchID, chosen.ID, "   ")
		require.NoError(t, err)
		assert.Equal(t, "Пойти налево", seg.Content)
	})

	t.Run("Second resolution attempt fails", func(t *testing.T) {
		env := newNarrativeEnv()
		bp := branchPoint(true)
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)

		env.branchRepo.On("GetByID", ctx, branchID).Return(bp, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.branchRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, branchID).Return(bp, nil).Once()

		_, err := env.svc.ResolveBranch(ctx, caller, branchID, bp.Options[0].ID, "Еще раз налево")
		assert.ErrorIs(t, err, models.ErrBranchAlreadyResolved)
		env.segmentRepo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Option from another branch point is rejected", func(t *testing.T) {
		env := newNarrativeEnv()
		bp := branchPoint(false)
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)

		env.branchRepo.On("GetByID", ctx, branchID).Return(bp, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.branchRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, branchID).Return(bp, nil).Once()

		_, err := env.svc.ResolveBranch(ctx, caller, branchID, uuid.New(), "Свернуть в чащу")
		assert.ErrorIs(t, err, models.ErrChoiceOptionInvalid)
	})
}

func TestCreateBranchPoint(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	caller := uuid.New()
	base := time.Now()

	t.Run("At least two options are required", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()

		_, err := env.svc.CreateBranchPoint(ctx, caller, storyID, uuid.New(), nil, []string{"Единственный вариант"})
		assert.ErrorIs(t, err, models.ErrNotEnoughOptions)
	})

	t.Run("Source segment must belong to the story", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		sourceID := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.segmentRepo.On("GetByID", ctx, sourceID).Return(&models.StorySegment{
			ID:      sourceID,
			StoryID: uuid.New(), // другая история
		}, nil).Once()

		_, err := env.svc.CreateBranchPoint(ctx, caller, storyID, sourceID, nil, []string{"Налево", "Направо"})
		assert.ErrorIs(t, err, models.ErrSegmentNotFound)
	})

	t.Run("Options get display order by position in the request", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		sourceID := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.segmentRepo.On("GetByID", ctx, sourceID).Return(&models.StorySegment{ID: sourceID, StoryID: storyID}, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.branchRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(bp *models.StoryBranchPoint) bool {
			return len(bp.Options) == 3 &&
				bp.Options[0].DisplayOrder == 0 && bp.Options[2].DisplayOrder == 2 &&
				bp.Options[1].OptionText == "Направо"
		})).Return(nil).Once()

		_, err := env.svc.CreateBranchPoint(ctx, caller, storyID, sourceID, nil, []string{"Налево", "Направо", "Прямо"})
		require.NoError(t, err)
		env.branchRepo.AssertExpectations(t)
	})
}

func TestReorderSegments(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	caller := uuid.New()
	base := time.Now()

	segs := []models.StorySegment{
		{ID: uuid.New(), StoryID: storyID, Position: 0},
		{ID: uuid.New(), StoryID: storyID, Position: 1},
		{ID: uuid.New(), StoryID: storyID, Position: 2},
	}

	setup := func(env *narrativeEnv) {
		collab := acceptedCollab(storyID, caller, models.RoleEditor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, nil), nil).Once()
		env.segmentRepo.On("ListByStory", mock.Anything, storyID).Return(segs, nil).Once()
	}

	t.Run("Valid permutation is applied", func(t *testing.T) {
		env := newNarrativeEnv()
		setup(env)
		order := []uuid.UUID{segs[2].ID, segs[0].ID, segs[1].ID}
		env.segmentRepo.On("ReorderTx", mock.Anything, mock.Anything, storyID, order).Return(nil).Once()

		require.NoError(t, env.svc.ReorderSegments(ctx, caller, storyID, order))
		env.segmentRepo.AssertExpectations(t)
	})

	t.Run("Missing segment is rejected", func(t *testing.T) {
		env := newNarrativeEnv()
		setup(env)
		err := env.svc.ReorderSegments(ctx, caller, storyID, []uuid.UUID{segs[0].ID, segs[1].ID})
		assert.ErrorIs(t, err, models.ErrInvalidPermutation)
	})

	t.Run("Duplicate segment is rejected", func(t *testing.T) {
		env := newNarrativeEnv()
		setup(env)
		err := env.svc.ReorderSegments(ctx, caller, storyID, []uuid.UUID{segs[0].ID, segs[0].ID, segs[1].ID})
		assert.ErrorIs(t, err, models.ErrInvalidPermutation)
	})

	t.Run("Unknown segment is rejected", func(t *testing.T) {
		env := newNarrativeEnv()
		setup(env)
		err := env.svc.ReorderSegments(ctx, caller, storyID, []uuid.UUID{segs[0].ID, segs[1].ID, uuid.New()})
		assert.ErrorIs(t, err, models.ErrInvalidPermutation)
	})

	t.Run("Contributor cannot reorder", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()

		err := env.svc.ReorderSegments(ctx, caller, storyID, []uuid.UUID{segs[0].ID})
		assert.ErrorIs(t, err, models.ErrInsufficientRole)
	})
}

func TestTurnManagement(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	caller := uuid.New()
	other := uuid.New()
	base := time.Now()

	t.Run("Unassigned turn can be requested", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, nil), nil).Once()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.MatchedBy(func(u *uuid.UUID) bool {
			return u != nil && *u == caller
		})).Return(nil).Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventGrantTurn, mock.Anything).Return().Once()

		require.NoError(t, env.svc.RequestTurn(ctx, caller, storyID))
		env.broadcaster.AssertExpectations(t)
	})

	t.Run("Requesting an already held turn is a no-op", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &caller), nil).Once()

		require.NoError(t, env.svc.RequestTurn(ctx, caller, storyID))
		env.storyRepo.AssertNotCalled(t, "SetCurrentTurnTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		env.broadcaster.AssertNotCalled(t, "BroadcastToStory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Turn held by another collaborator cannot be taken", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &other), nil).Once()

		err := env.svc.RequestTurn(ctx, caller, storyID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Only the holder can release the turn", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &other), nil).Once()

		err := env.svc.ReleaseTurn(ctx, caller, storyID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Releasing passes the turn round-robin", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).
			Return(writableStory(storyID, &caller), nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).Return([]models.StoryCollaborator{
			collab,
			acceptedCollab(storyID, other, models.RoleContributor, base.Add(time.Minute)),
		}, nil).Once()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.MatchedBy(func(u *uuid.UUID) bool {
			return u != nil && *u == other
		})).Return(nil).Once()
		env.broadcaster.On("BroadcastToStory", storyID, models.EventGrantTurn, mock.Anything).Return().Once()
		env.notifier.On("NotifyTurnGranted", mock.Anything, mock.Anything, other).Return().Once()

		require.NoError(t, env.svc.ReleaseTurn(ctx, caller, storyID))
		env.storyRepo.AssertExpectations(t)
	})
}

func TestAISegments(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	caller := uuid.New()
	base := time.Now()

	t.Run("AddAISegment requires co_write mode", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		story := writableStory(storyID, nil)
		story.Settings.AIContributionMode = models.AIModeSuggest

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(story, nil).Once()

		_, err := env.svc.AddAISegment(ctx, caller, storyID)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("AddAISegment stores generated text as an AI segment", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		story := writableStory(storyID, nil)
		story.Settings.AIContributionMode = models.AIModeCoWrite

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(story, nil).Once()
		env.builder.On("BuildPrompt", ctx, story).Return("prompt", nil).Once()
		env.provider.On("GenerateText", ctx, "prompt").Return("  Продолжение от модели.  ", nil).Once()

		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("GetForUpdateTx", mock.Anything, mock.Anything, storyID).Return(story, nil).Once()
		env.segmentRepo.On("MaxPositionTx", mock.Anything, mock.Anything, storyID).Return(1, nil).Once()
		env.segmentRepo.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(seg *models.StorySegment) bool {
			return seg.IsAIGenerated && seg.Content == "Продолжение от модели." && seg.Position == 2
		})).Return(nil).Once()
		env.collabRepo.On("IncrementContributionTx", mock.Anything, mock.Anything, storyID, caller).Return(nil).Once()
		env.collabRepo.On("ListByStoryTx", mock.Anything, mock.Anything, storyID).
			Return([]models.StoryCollaborator{collab}, nil).Once()

		env.scanner.On("ScanSegment", mock.Anything, storyID, mock.Anything).Return(nil).Maybe()
		env.media.On("RequestAuto", mock.Anything, mock.Anything, mock.Anything).Return().Once()
		env.broadcaster.On("BroadcastToStory", storyID, mock.Anything, mock.Anything).Return()
		env.storyRepo.On("SetCurrentTurnTx", mock.Anything, mock.Anything, storyID, mock.Anything).Return(nil).Once()
		env.notifier.On("NotifyTurnGranted", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()

		seg, err := env.svc.AddAISegment(ctx, caller, storyID)
		require.NoError(t, err)
		assert.True(t, seg.IsAIGenerated)
		env.provider.AssertExpectations(t)
	})

	t.Run("SuggestContinuation is rejected when AI is disabled", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(writableStory(storyID, nil), nil).Once()

		_, err := env.svc.SuggestContinuation(ctx, caller, storyID)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("SuggestContinuation returns a draft without persisting", func(t *testing.T) {
		env := newNarrativeEnv()
		collab := acceptedCollab(storyID, caller, models.RoleContributor, base)
		story := writableStory(storyID, nil)
		story.Settings.AIContributionMode = models.AIModeSuggest

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).Return(&collab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(story, nil).Once()
		env.builder.On("BuildPrompt", ctx, story).Return("prompt", nil).Once()
		env.provider.On("GenerateText", ctx, "prompt").Return("Черновик.", nil).Once()

		draft, err := env.svc.SuggestContinuation(ctx, caller, storyID)
		require.NoError(t, err)
		assert.Equal(t, "Черновик.", draft)
		env.segmentRepo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything)
	})
}

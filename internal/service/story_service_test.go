package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	imocks "wove-server/internal/interfaces/mocks"
	"wove-server/internal/models"
	"wove-server/internal/service"
	smocks "wove-server/internal/service/mocks"
)

type storyEnv struct {
	storyRepo  *imocks.StoryRepository
	collabRepo *imocks.CollaboratorRepository
	txRunner   *imocks.TxRunner
	notifier   *smocks.NotificationService
	svc        service.StoryService
}

func newStoryEnv() *storyEnv {
	env := &storyEnv{
		storyRepo:  new(imocks.StoryRepository),
		collabRepo: new(imocks.CollaboratorRepository),
		txRunner:   new(imocks.TxRunner),
		notifier:   new(smocks.NotificationService),
	}
	env.svc = service.NewStoryService(
		env.storyRepo,
		env.collabRepo,
		service.NewPermissionService(env.collabRepo, zap.NewNop()),
		env.txRunner,
		env.notifier,
		zap.NewNop(),
	)
	return env
}

func TestCreateStory(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New()

	t.Run("Creator becomes the accepted owner in the same transaction", func(t *testing.T) {
		env := newStoryEnv()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(st *models.Story) bool {
			return st.Title == "Лес шепчет" && st.Status == models.StoryStatusDraft && st.AgeTier == models.AgeTierKids
		})).Run(func(args mock.Arguments) {
			args.Get(2).(*models.Story).ID = uuid.New()
		}).Return(nil).Once()
		env.collabRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *models.StoryCollaborator) bool {
			return c.UserID == creatorID && c.Role == models.RoleOwner && c.InvitationAccepted
		})).Return(nil).Once()

		story, err := env.svc.CreateStory(ctx, creatorID, service.CreateStoryInput{
			Title:   "Лес шепчет",
			AgeTier: models.AgeTierKids,
		})
		require.NoError(t, err)
		assert.Equal(t, models.DefaultStorySettings(), story.Settings)
		env.collabRepo.AssertExpectations(t)
	})

	t.Run("Empty title is rejected", func(t *testing.T) {
		env := newStoryEnv()
		_, err := env.svc.CreateStory(ctx, creatorID, service.CreateStoryInput{})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Unknown settings keys are rejected", func(t *testing.T) {
		env := newStoryEnv()
		_, err := env.svc.CreateStory(ctx, creatorID, service.CreateStoryInput{
			Title:        "История",
			SettingsJSON: json.RawMessage(`{"turbo_mode": true}`),
		})
		assert.ErrorIs(t, err, models.ErrInvalidSettings)
	})

	t.Run("Missing age tier defaults to unverified", func(t *testing.T) {
		env := newStoryEnv()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.storyRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(st *models.Story) bool {
			return st.AgeTier == models.AgeTierUnverified
		})).Return(nil).Once()
		env.collabRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

		_, err := env.svc.CreateStory(ctx, creatorID, service.CreateStoryInput{Title: "Без уровня"})
		require.NoError(t, err)
	})
}

func TestGetStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	caller := uuid.New()

	t.Run("Published public story is visible to anyone", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusPublished, IsPrivate: false,
		}, nil).Once()

		story, err := env.svc.GetStory(ctx, caller, nil, storyID)
		require.NoError(t, err)
		assert.Equal(t, storyID, story.ID)
		env.collabRepo.AssertNotCalled(t, "GetByStoryAndUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Private story is hidden from outsiders", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusInProgress, IsPrivate: true,
		}, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).
			Return(nil, models.ErrNotCollaborator).Once()

		_, err := env.svc.GetStory(ctx, caller, nil, storyID)
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})

	t.Run("Private story is visible to a collaborator", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusInProgress, IsPrivate: true,
		}, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, caller).
			Return(&models.StoryCollaborator{UserID: caller, Role: models.RoleReader}, nil).Once()

		_, err := env.svc.GetStory(ctx, caller, nil, storyID)
		assert.NoError(t, err)
	})

	t.Run("Private story is visible to a moderator", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusInProgress, IsPrivate: true,
		}, nil).Once()

		_, err := env.svc.GetStory(ctx, caller, []string{models.UserRoleModerator}, storyID)
		assert.NoError(t, err)
		env.collabRepo.AssertNotCalled(t, "GetByStoryAndUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUpdateStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	owner := uuid.New()

	ownerCollab := &models.StoryCollaborator{
		StoryID: storyID, UserID: owner, Role: models.RoleOwner, InvitationAccepted: true,
	}

	t.Run("Settings patch is applied over the current settings", func(t *testing.T) {
		env := newStoryEnv()
		current := models.DefaultStorySettings()
		current.AllowAIImages = false

		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Title: "Старое имя", Settings: current,
		}, nil).Once()
		env.storyRepo.On("Update", ctx, mock.MatchedBy(func(st *models.Story) bool {
			return st.Settings.AIContributionMode == models.AIModeSuggest && !st.Settings.AllowAIImages
		})).Return(nil).Once()

		story, err := env.svc.UpdateStory(ctx, owner, storyID, service.UpdateStoryInput{
			SettingsJSON: json.RawMessage(`{"ai_contribution_mode": "suggest"}`),
		})
		require.NoError(t, err)
		// Незатронутые патчем поля сохраняются
		assert.False(t, story.Settings.AllowAIImages)
	})

	t.Run("Unknown patch keys fail without touching the story", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Settings: models.DefaultStorySettings(),
		}, nil).Once()

		_, err := env.svc.UpdateStory(ctx, owner, storyID, service.UpdateStoryInput{
			SettingsJSON: json.RawMessage(`{"frequency": "high"}`),
		})
		assert.ErrorIs(t, err, models.ErrInvalidSettings)
		env.storyRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("Contributor cannot update the story", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(&models.StoryCollaborator{
			StoryID: storyID, UserID: owner, Role: models.RoleContributor, InvitationAccepted: true,
		}, nil).Once()

		_, err := env.svc.UpdateStory(ctx, owner, storyID, service.UpdateStoryInput{})
		assert.ErrorIs(t, err, models.ErrInsufficientRole)
	})
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	owner := uuid.New()

	ownerCollab := &models.StoryCollaborator{
		StoryID: storyID, UserID: owner, Role: models.RoleOwner, InvitationAccepted: true,
	}

	t.Run("Owner moves a draft into progress", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusDraft,
		}, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("UpdateStatus", ctx, storyID, models.StoryStatusInProgress).Return(nil).Once()

		story, err := env.svc.ChangeStatus(ctx, owner, nil, storyID, models.StoryStatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, models.StoryStatusInProgress, story.Status)
	})

	t.Run("Draft cannot go straight to published", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusDraft,
		}, nil).Once()

		_, err := env.svc.ChangeStatus(ctx, owner, nil, storyID, models.StoryStatusPublished)
		assert.ErrorIs(t, err, models.ErrInvalidStatusChange)
	})

	t.Run("Publishing requires a moderator", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusPendingApproval,
		}, nil).Once()

		_, err := env.svc.ChangeStatus(ctx, owner, nil, storyID, models.StoryStatusPublished)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Moderator publishes and collaborators are notified", func(t *testing.T) {
		env := newStoryEnv()
		moderator := uuid.New()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusPendingApproval,
		}, nil).Once()
		env.storyRepo.On("UpdateStatus", ctx, storyID, models.StoryStatusPublished).Return(nil).Once()
		env.notifier.On("NotifyStoryPublished", mock.Anything, mock.MatchedBy(func(st *models.Story) bool {
			return st.ID == storyID && st.Status == models.StoryStatusPublished
		})).Return().Once()

		_, err := env.svc.ChangeStatus(ctx, moderator, []string{models.UserRoleModerator}, storyID, models.StoryStatusPublished)
		require.NoError(t, err)
		env.notifier.AssertExpectations(t)
	})

	t.Run("Archived story can be revived", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, Status: models.StoryStatusArchived,
		}, nil).Once()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("UpdateStatus", ctx, storyID, models.StoryStatusInProgress).Return(nil).Once()

		_, err := env.svc.ChangeStatus(ctx, owner, nil, storyID, models.StoryStatusInProgress)
		assert.NoError(t, err)
	})
}

func TestCollaboratorManagement(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	owner := uuid.New()
	invitee := uuid.New()

	ownerCollab := &models.StoryCollaborator{
		StoryID: storyID, UserID: owner, Role: models.RoleOwner, InvitationAccepted: true,
	}

	t.Run("Invitation creates a pending collaborator and notifies them", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, AllowCollab: true,
		}, nil).Once()
		env.txRunner.On("WithTx", mock.Anything, mock.Anything).Return(nil).Once()
		env.collabRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *models.StoryCollaborator) bool {
			return c.UserID == invitee && c.Role == models.RoleContributor && !c.InvitationAccepted
		})).Return(nil).Once()
		env.notifier.On("NotifyInvitation", mock.Anything, mock.Anything, invitee, models.RoleContributor).Return().Once()

		collab, err := env.svc.InviteCollaborator(ctx, owner, storyID, invitee, models.RoleContributor)
		require.NoError(t, err)
		assert.False(t, collab.InvitationAccepted)
		env.notifier.AssertExpectations(t)
	})

	t.Run("Second owner cannot be invited", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()

		_, err := env.svc.InviteCollaborator(ctx, owner, storyID, invitee, models.RoleOwner)
		assert.ErrorIs(t, err, models.ErrOwnerImmutable)
	})

	t.Run("Invitations are blocked when collaboration is off", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()
		env.storyRepo.On("GetByID", ctx, storyID).Return(&models.Story{
			ID: storyID, AllowCollab: false,
		}, nil).Once()

		_, err := env.svc.InviteCollaborator(ctx, owner, storyID, invitee, models.RoleContributor)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Editor cannot invite collaborators", func(t *testing.T) {
		env := newStoryEnv()
		editor := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, editor).Return(&models.StoryCollaborator{
			StoryID: storyID, UserID: editor, Role: models.RoleEditor, InvitationAccepted: true,
		}, nil).Once()

		_, err := env.svc.InviteCollaborator(ctx, editor, storyID, invitee, models.RoleReader)
		assert.ErrorIs(t, err, models.ErrInsufficientRole)
	})

	t.Run("Owner role cannot be changed", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Twice()

		err := env.svc.ChangeCollaboratorRole(ctx, owner, storyID, owner, models.RoleEditor)
		assert.ErrorIs(t, err, models.ErrOwnerImmutable)
	})

	t.Run("Owner cannot be removed", func(t *testing.T) {
		env := newStoryEnv()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(ownerCollab, nil).Once()

		err := env.svc.RemoveCollaborator(ctx, owner, storyID, owner)
		assert.ErrorIs(t, err, models.ErrOwnerImmutable)
	})

	t.Run("Collaborator can leave on their own", func(t *testing.T) {
		env := newStoryEnv()
		member := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, member).Return(&models.StoryCollaborator{
			StoryID: storyID, UserID: member, Role: models.RoleContributor, InvitationAccepted: true,
		}, nil).Once()
		env.collabRepo.On("Remove", ctx, storyID, member).Return(nil).Once()

		require.NoError(t, env.svc.RemoveCollaborator(ctx, member, storyID, member))
		env.collabRepo.AssertExpectations(t)
	})
}

func TestDeleteStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("Only the owner can delete", func(t *testing.T) {
		env := newStoryEnv()
		editor := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, editor).Return(&models.StoryCollaborator{
			StoryID: storyID, UserID: editor, Role: models.RoleEditor, InvitationAccepted: true,
		}, nil).Once()

		err := env.svc.DeleteStory(ctx, editor, storyID)
		assert.ErrorIs(t, err, models.ErrInsufficientRole)
		env.storyRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Owner deletes the story", func(t *testing.T) {
		env := newStoryEnv()
		owner := uuid.New()
		env.collabRepo.On("GetByStoryAndUser", ctx, storyID, owner).Return(&models.StoryCollaborator{
			StoryID: storyID, UserID: owner, Role: models.RoleOwner, InvitationAccepted: true,
		}, nil).Once()
		env.storyRepo.On("Delete", ctx, storyID).Return(nil).Once()

		require.NoError(t, env.svc.DeleteStory(ctx, owner, storyID))
	})
}

func TestListPublished(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid viewer tier falls back to unverified", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("ListPublished", ctx, models.AgeTierUnverified, 20, 0).
			Return([]models.Story{}, nil).Once()

		_, err := env.svc.ListPublished(ctx, models.AgeTier("alien"), 0, 0)
		require.NoError(t, err)
		env.storyRepo.AssertExpectations(t)
	})

	t.Run("Oversized limit is clamped to the default", func(t *testing.T) {
		env := newStoryEnv()
		env.storyRepo.On("ListPublished", ctx, models.AgeTierAdults, 20, 40).
			Return([]models.Story{}, nil).Once()

		_, err := env.svc.ListPublished(ctx, models.AgeTierAdults, 500, 40)
		require.NoError(t, err)
		env.storyRepo.AssertExpectations(t)
	})
}

package service_test

import (
	"context"
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

type parentalEnv struct {
	parentalRepo *imocks.ParentalRepository
	userRepo     *imocks.UserRepository
	storyRepo    *imocks.StoryRepository
	notifier     *smocks.NotificationService
	svc          service.ParentalService
}

func newParentalEnv() *parentalEnv {
	env := &parentalEnv{
		parentalRepo: new(imocks.ParentalRepository),
		userRepo:     new(imocks.UserRepository),
		storyRepo:    new(imocks.StoryRepository),
		notifier:     new(smocks.NotificationService),
	}
	env.svc = service.NewParentalService(
		env.parentalRepo,
		env.userRepo,
		env.storyRepo,
		env.notifier,
		zap.NewNop(),
	)
	return env
}

func TestParentalLinks(t *testing.T) {
	ctx := context.Background()
	parent := uuid.New()
	child := uuid.New()

	t.Run("Link request starts pending and notifies the child", func(t *testing.T) {
		env := newParentalEnv()
		env.userRepo.On("GetByID", ctx, child).Return(&models.User{ID: child}, nil).Once()
		env.parentalRepo.On("CreateLink", ctx, mock.MatchedBy(func(l *models.ParentalLink) bool {
			return l.ParentUserID == parent && l.ChildUserID == child && l.Status == models.ParentalLinkPending
		})).Return(nil).Once()
		env.notifier.On("NotifyParental", mock.Anything, child, "Parental link request", mock.Anything).Return().Once()

		link, err := env.svc.RequestLink(ctx, parent, child)
		require.NoError(t, err)
		assert.Equal(t, models.ParentalLinkPending, link.Status)
		env.notifier.AssertExpectations(t)
	})

	t.Run("Self-link is rejected", func(t *testing.T) {
		env := newParentalEnv()
		_, err := env.svc.RequestLink(ctx, parent, parent)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Only the child can confirm the link", func(t *testing.T) {
		env := newParentalEnv()
		linkID := uuid.New()
		env.parentalRepo.On("GetLinkByID", ctx, linkID).Return(&models.ParentalLink{
			ID: linkID, ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkPending,
		}, nil).Once()

		err := env.svc.ConfirmLink(ctx, parent, linkID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Confirmation activates the link and notifies the parent", func(t *testing.T) {
		env := newParentalEnv()
		linkID := uuid.New()
		env.parentalRepo.On("GetLinkByID", ctx, linkID).Return(&models.ParentalLink{
			ID: linkID, ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkPending,
		}, nil).Once()
		env.parentalRepo.On("UpdateLinkStatus", ctx, linkID, models.ParentalLinkActive).Return(nil).Once()
		env.notifier.On("NotifyParental", mock.Anything, parent, "Parental link confirmed", mock.Anything).Return().Once()

		require.NoError(t, env.svc.ConfirmLink(ctx, child, linkID))
		env.parentalRepo.AssertExpectations(t)
	})

	t.Run("Active link cannot be confirmed twice", func(t *testing.T) {
		env := newParentalEnv()
		linkID := uuid.New()
		env.parentalRepo.On("GetLinkByID", ctx, linkID).Return(&models.ParentalLink{
			ID: linkID, ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkActive,
		}, nil).Once()

		err := env.svc.ConfirmLink(ctx, child, linkID)
		assert.ErrorIs(t, err, models.ErrInvalidStatusChange)
	})

	t.Run("Either side can revoke, a stranger cannot", func(t *testing.T) {
		env := newParentalEnv()
		linkID := uuid.New()
		link := &models.ParentalLink{
			ID: linkID, ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkActive,
		}
		env.parentalRepo.On("GetLinkByID", ctx, linkID).Return(link, nil).Times(2)
		env.parentalRepo.On("UpdateLinkStatus", ctx, linkID, models.ParentalLinkRevoked).Return(nil).Once()

		require.NoError(t, env.svc.RevokeLink(ctx, child, linkID))
		assert.ErrorIs(t, env.svc.RevokeLink(ctx, uuid.New(), linkID), models.ErrForbidden)
	})

	t.Run("Revoking an already revoked link is a no-op", func(t *testing.T) {
		env := newParentalEnv()
		linkID := uuid.New()
		env.parentalRepo.On("GetLinkByID", ctx, linkID).Return(&models.ParentalLink{
			ID: linkID, ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkRevoked,
		}, nil).Once()

		require.NoError(t, env.svc.RevokeLink(ctx, parent, linkID))
		env.parentalRepo.AssertNotCalled(t, "UpdateLinkStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestListChildStories(t *testing.T) {
	ctx := context.Background()
	parent := uuid.New()
	child := uuid.New()

	t.Run("Active link grants access to the child's stories", func(t *testing.T) {
		env := newParentalEnv()
		env.parentalRepo.On("GetLink", ctx, parent, child).Return(&models.ParentalLink{
			ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkActive,
		}, nil).Once()
		env.storyRepo.On("ListByCollaborator", ctx, child, 20, 0).Return([]models.Story{}, nil).Once()

		_, err := env.svc.ListChildStories(ctx, parent, child, 0, 0)
		require.NoError(t, err)
		env.storyRepo.AssertExpectations(t)
	})

	t.Run("Pending link does not grant access", func(t *testing.T) {
		env := newParentalEnv()
		env.parentalRepo.On("GetLink", ctx, parent, child).Return(&models.ParentalLink{
			ParentUserID: parent, ChildUserID: child, Status: models.ParentalLinkPending,
		}, nil).Once()

		_, err := env.svc.ListChildStories(ctx, parent, child, 0, 0)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Missing link does not grant access", func(t *testing.T) {
		env := newParentalEnv()
		env.parentalRepo.On("GetLink", ctx, parent, child).
			Return(nil, models.ErrParentalLinkNotFound).Once()

		_, err := env.svc.ListChildStories(ctx, parent, child, 0, 0)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestAgeVerification(t *testing.T) {
	ctx := context.Background()
	childUser := uuid.New()
	parent := uuid.New()

	t.Run("Parent-consent request notifies active parents", func(t *testing.T) {
		env := newParentalEnv()
		env.parentalRepo.On("CreateVerification", ctx, mock.MatchedBy(func(r *models.AgeVerificationRequest) bool {
			return r.UserID == childUser && r.RequestedTier == models.AgeTierKids && r.Status == models.VerificationPending
		})).Return(nil).Once()
		env.parentalRepo.On("ListParents", ctx, childUser).Return([]models.ParentalLink{
			{ParentUserID: parent, ChildUserID: childUser, Status: models.ParentalLinkActive},
			{ParentUserID: uuid.New(), ChildUserID: childUser, Status: models.ParentalLinkRevoked},
		}, nil).Once()
		// Уведомление получает только родитель с активной связью
		env.notifier.On("NotifyParental", mock.Anything, parent, "Age verification awaiting approval", mock.Anything).Return().Once()

		req, err := env.svc.RequestAgeVerification(ctx, childUser, models.AgeTierKids, models.VerificationMethodParent)
		require.NoError(t, err)
		assert.Equal(t, models.VerificationPending, req.Status)
		env.notifier.AssertExpectations(t)
	})

	t.Run("Unverified tier cannot be requested", func(t *testing.T) {
		env := newParentalEnv()
		_, err := env.svc.RequestAgeVerification(ctx, childUser, models.AgeTierUnverified, models.VerificationMethodParent)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Unknown method is rejected", func(t *testing.T) {
		env := newParentalEnv()
		_, err := env.svc.RequestAgeVerification(ctx, childUser, models.AgeTierKids, models.VerificationMethod("psychic"))
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Parent approval updates the verified tier", func(t *testing.T) {
		env := newParentalEnv()
		requestID := uuid.New()
		env.parentalRepo.On("GetVerificationByID", ctx, requestID).Return(&models.AgeVerificationRequest{
			ID: requestID, UserID: childUser, RequestedTier: models.AgeTierKids,
			Method: models.VerificationMethodParent, Status: models.VerificationPending,
		}, nil).Once()
		env.parentalRepo.On("GetLink", ctx, parent, childUser).Return(&models.ParentalLink{
			ParentUserID: parent, ChildUserID: childUser, Status: models.ParentalLinkActive,
		}, nil).Once()
		env.parentalRepo.On("UpdateVerification", ctx, requestID, models.VerificationApproved, parent).Return(nil).Once()
		env.userRepo.On("UpdateVerifiedAgeTier", ctx, childUser, models.AgeTierKids).Return(nil).Once()
		env.notifier.On("NotifyParental", mock.Anything, childUser, "Age verification approved", mock.Anything).Return().Once()

		require.NoError(t, env.svc.ReviewAgeVerification(ctx, parent, requestID, true))
		env.userRepo.AssertExpectations(t)
	})

	t.Run("Stranger cannot approve a parent-consent request", func(t *testing.T) {
		env := newParentalEnv()
		requestID := uuid.New()
		stranger := uuid.New()
		env.parentalRepo.On("GetVerificationByID", ctx, requestID).Return(&models.AgeVerificationRequest{
			ID: requestID, UserID: childUser, RequestedTier: models.AgeTierKids,
			Method: models.VerificationMethodParent, Status: models.VerificationPending,
		}, nil).Once()
		env.parentalRepo.On("GetLink", ctx, stranger, childUser).
			Return(nil, models.ErrParentalLinkNotFound).Once()

		err := env.svc.ReviewAgeVerification(ctx, stranger, requestID, true)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("Document verification is reviewed by a moderator", func(t *testing.T) {
		env := newParentalEnv()
		requestID := uuid.New()
		moderator := uuid.New()
		env.parentalRepo.On("GetVerificationByID", ctx, requestID).Return(&models.AgeVerificationRequest{
			ID: requestID, UserID: childUser, RequestedTier: models.AgeTierAdults,
			Method: models.VerificationMethodDocument, Status: models.VerificationPending,
		}, nil).Once()
		env.userRepo.On("GetByID", ctx, moderator).Return(&models.User{
			ID: moderator, Roles: []string{models.UserRoleModerator},
		}, nil).Once()
		env.parentalRepo.On("UpdateVerification", ctx, requestID, models.VerificationRejected, moderator).Return(nil).Once()
		env.notifier.On("NotifyParental", mock.Anything, childUser, "Age verification rejected", mock.Anything).Return().Once()

		require.NoError(t, env.svc.ReviewAgeVerification(ctx, moderator, requestID, false))
		// Отклонение не меняет подтвержденную категорию
		env.userRepo.AssertNotCalled(t, "UpdateVerifiedAgeTier", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Listing verifications requires a moderator", func(t *testing.T) {
		env := newParentalEnv()
		caller := uuid.New()
		env.userRepo.On("GetByID", ctx, caller).Return(&models.User{
			ID: caller, Roles: []string{models.UserRoleUser},
		}, nil).Once()

		_, err := env.svc.ListVerifications(ctx, caller, models.VerificationPending, 0, 0)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// ParentalService управляет связями родитель-ребенок и заявками
// на подтверждение возрастной категории.
type ParentalService interface {
	// RequestLink создает ожидающую связь; активной она становится
	// только после подтверждения ребенком.
	RequestLink(ctx context.Context, parentID, childID uuid.UUID) (*models.ParentalLink, error)
	ConfirmLink(ctx context.Context, childID, linkID uuid.UUID) error
	RevokeLink(ctx context.Context, callerID, linkID uuid.UUID) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ParentalLink, error)
	// ListChildStories дает родителю с активной связью доступ к историям ребенка.
	ListChildStories(ctx context.Context, parentID, childID uuid.UUID, limit, offset int) ([]models.Story, error)

	RequestAgeVerification(ctx context.Context, userID uuid.UUID, tier models.AgeTier, method models.VerificationMethod) (*models.AgeVerificationRequest, error)
	ListVerifications(ctx context.Context, callerID uuid.UUID, status models.VerificationStatus, limit, offset int) ([]models.AgeVerificationRequest, error)
	// ReviewAgeVerification: parental_consent подтверждает родитель с активной
	// связью, document - модератор. Одобрение обновляет verified_age_tier.
	ReviewAgeVerification(ctx context.Context, reviewerID, requestID uuid.UUID, approve bool) error
}

var _ ParentalService = (*parentalServiceImpl)(nil)

type parentalServiceImpl struct {
	parentalRepo interfaces.ParentalRepository
	userRepo     interfaces.UserRepository
	storyRepo    interfaces.StoryRepository
	notifier     NotificationService
	logger       *zap.Logger
}

func NewParentalService(
	parentalRepo interfaces.ParentalRepository,
	userRepo interfaces.UserRepository,
	storyRepo interfaces.StoryRepository,
	notifier NotificationService,
	logger *zap.Logger,
) ParentalService {
	return &parentalServiceImpl{
		parentalRepo: parentalRepo,
		userRepo:     userRepo,
		storyRepo:    storyRepo,
		notifier:     notifier,
		logger:       logger.Named("ParentalService"),
	}
}

func (s *parentalServiceImpl) RequestLink(ctx context.Context, parentID, childID uuid.UUID) (*models.ParentalLink, error) {
	if parentID == childID {
		return nil, fmt.Errorf("%w: cannot link an account to itself", models.ErrInvalidInput)
	}
	child, err := s.userRepo.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}

	link := &models.ParentalLink{
		ParentUserID: parentID,
		ChildUserID:  childID,
		Status:       models.ParentalLinkPending,
	}
	if err := s.parentalRepo.CreateLink(ctx, link); err != nil {
		return nil, err
	}

	s.notifier.NotifyParental(ctx, childID, "Parental link request",
		"A parent account has requested oversight of your account. Confirm to activate the link.")
	s.logger.Info("Parental link requested",
		zap.String("linkID", link.ID.String()),
		zap.String("parentID", parentID.String()),
		zap.String("childID", child.ID.String()))
	return link, nil
}

func (s *parentalServiceImpl) ConfirmLink(ctx context.Context, childID, linkID uuid.UUID) error {
	link, err := s.parentalRepo.GetLinkByID(ctx, linkID)
	if err != nil {
		return err
	}
	// Подтверждает только ребенок
	if link.ChildUserID != childID {
		return models.ErrForbidden
	}
	if link.Status != models.ParentalLinkPending {
		return fmt.Errorf("%w: link is not pending", models.ErrInvalidStatusChange)
	}
	if err := s.parentalRepo.UpdateLinkStatus(ctx, linkID, models.ParentalLinkActive); err != nil {
		return err
	}

	s.notifier.NotifyParental(ctx, link.ParentUserID, "Parental link confirmed",
		"Your oversight request has been confirmed.")
	s.logger.Info("Parental link confirmed", zap.String("linkID", linkID.String()))
	return nil
}

func (s *parentalServiceImpl) RevokeLink(ctx context.Context, callerID, linkID uuid.UUID) error {
	link, err := s.parentalRepo.GetLinkByID(ctx, linkID)
	if err != nil {
		return err
	}
	// Разорвать связь может любая из сторон
	if link.ParentUserID != callerID && link.ChildUserID != callerID {
		return models.ErrForbidden
	}
	if link.Status == models.ParentalLinkRevoked {
		return nil
	}
	if err := s.parentalRepo.UpdateLinkStatus(ctx, linkID, models.ParentalLinkRevoked); err != nil {
		return err
	}
	s.logger.Info("Parental link revoked",
		zap.String("linkID", linkID.String()),
		zap.String("revokedBy", callerID.String()))
	return nil
}

func (s *parentalServiceImpl) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ParentalLink, error) {
	return s.parentalRepo.ListChildren(ctx, parentID)
}

func (s *parentalServiceImpl) ListChildStories(ctx context.Context, parentID, childID uuid.UUID, limit, offset int) ([]models.Story, error) {
	if err := s.requireActiveLink(ctx, parentID, childID); err != nil {
		return nil, err
	}
	return s.storyRepo.ListByCollaborator(ctx, childID, normalizeLimit(limit), offset)
}

func (s *parentalServiceImpl) RequestAgeVerification(ctx context.Context, userID uuid.UUID, tier models.AgeTier, method models.VerificationMethod) (*models.AgeVerificationRequest, error) {
	if !models.ValidAgeTier(tier) || tier == models.AgeTierUnverified {
		return nil, fmt.Errorf("%w: unknown or non-verifiable age tier %q", models.ErrInvalidInput, tier)
	}
	switch method {
	case models.VerificationMethodParent, models.VerificationMethodDocument:
	default:
		return nil, fmt.Errorf("%w: unknown verification method %q", models.ErrInvalidInput, method)
	}

	req := &models.AgeVerificationRequest{
		UserID:        userID,
		RequestedTier: tier,
		Method:        method,
		Status:        models.VerificationPending,
	}
	if err := s.parentalRepo.CreateVerification(ctx, req); err != nil {
		return nil, err
	}

	// При подтверждении родителем извещаем всех родителей с активной связью.
	// ListChildren работает в обе стороны от родителя, поэтому ищем связи,
	// где заявитель считается ребенком.
	if method == models.VerificationMethodParent {
		s.notifyParents(ctx, userID)
	}

	s.logger.Info("Age verification requested",
		zap.String("requestID", req.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("tier", string(tier)),
		zap.String("method", string(method)))
	return req, nil
}

func (s *parentalServiceImpl) ListVerifications(ctx context.Context, callerID uuid.UUID, status models.VerificationStatus, limit, offset int) ([]models.AgeVerificationRequest, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsModerator() {
		return nil, models.ErrForbidden
	}
	return s.parentalRepo.ListVerifications(ctx, status, normalizeLimit(limit), offset)
}

func (s *parentalServiceImpl) ReviewAgeVerification(ctx context.Context, reviewerID, requestID uuid.UUID, approve bool) error {
	req, err := s.parentalRepo.GetVerificationByID(ctx, requestID)
	if err != nil {
		return err
	}

	switch req.Method {
	case models.VerificationMethodParent:
		if err := s.requireActiveLink(ctx, reviewerID, req.UserID); err != nil {
			return err
		}
	case models.VerificationMethodDocument:
		reviewer, err := s.userRepo.GetByID(ctx, reviewerID)
		if err != nil {
			return err
		}
		if !reviewer.IsModerator() {
			return models.ErrForbidden
		}
	default:
		return fmt.Errorf("%w: unknown verification method %q", models.ErrInvalidInput, req.Method)
	}

	status := models.VerificationRejected
	if approve {
		status = models.VerificationApproved
	}
	// UpdateVerification срабатывает только для pending заявок
	if err := s.parentalRepo.UpdateVerification(ctx, requestID, status, reviewerID); err != nil {
		return err
	}

	if approve {
		if err := s.userRepo.UpdateVerifiedAgeTier(ctx, req.UserID, req.RequestedTier); err != nil {
			return fmt.Errorf("failed to update verified age tier: %w", err)
		}
		s.notifier.NotifyParental(ctx, req.UserID, "Age verification approved",
			fmt.Sprintf("Your age tier has been verified as %q.", req.RequestedTier))
	} else {
		s.notifier.NotifyParental(ctx, req.UserID, "Age verification rejected",
			"Your age verification request has been rejected.")
	}

	s.logger.Info("Age verification reviewed",
		zap.String("requestID", requestID.String()),
		zap.String("reviewerID", reviewerID.String()),
		zap.Bool("approved", approve))
	return nil
}

// requireActiveLink проверяет активную связь parentID -> childID.
func (s *parentalServiceImpl) requireActiveLink(ctx context.Context, parentID, childID uuid.UUID) error {
	link, err := s.parentalRepo.GetLink(ctx, parentID, childID)
	if err != nil {
		if errors.Is(err, models.ErrParentalLinkNotFound) {
			return models.ErrForbidden
		}
		return err
	}
	if link.Status != models.ParentalLinkActive {
		return models.ErrForbidden
	}
	return nil
}

func (s *parentalServiceImpl) notifyParents(ctx context.Context, childID uuid.UUID) {
	links, err := s.parentalRepo.ListParents(ctx, childID)
	if err != nil {
		s.logger.Warn("Failed to list parents for verification notice", zap.Error(err), zap.String("childID", childID.String()))
		return
	}
	for _, link := range links {
		if link.Status != models.ParentalLinkActive {
			continue
		}
		s.notifier.NotifyParental(ctx, link.ParentUserID, "Age verification awaiting approval",
			"Your child has requested an age tier verification that needs your confirmation.")
	}
}

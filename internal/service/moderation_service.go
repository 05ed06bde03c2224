package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

const reportReasonMaxLen = 1000

// ModerationService обрабатывает жалобы на контент и санкции к пользователям.
// Все операции проверки выполняются от имени модератора; создание жалобы
// доступно любому аутентифицированному пользователю.
type ModerationService interface {
	CreateReport(ctx context.Context, reporterID uuid.UUID, storyID, segmentID *uuid.UUID, reason string, details *string) (*models.ContentReport, error)
	GetReport(ctx context.Context, callerID, reportID uuid.UUID) (*models.ContentReport, error)
	ListReports(ctx context.Context, callerID uuid.UUID, status models.ReportStatus, limit, offset int) ([]models.ContentReport, error)
	// ReviewReport переводит жалобу по допустимой цепочке статусов
	// pending -> reviewing -> resolved | dismissed.
	ReviewReport(ctx context.Context, reviewerID, reportID uuid.UUID, status models.ReportStatus, resolution *string) (*models.ContentReport, error)

	BanUser(ctx context.Context, callerID, targetID uuid.UUID, reason string) error
	UnbanUser(ctx context.Context, callerID, targetID uuid.UUID) error
}

var _ ModerationService = (*moderationServiceImpl)(nil)

type moderationServiceImpl struct {
	reportRepo interfaces.ReportRepository
	userRepo   interfaces.UserRepository
	storyRepo  interfaces.StoryRepository
	auth       AuthService
	notifier   NotificationService
	logger     *zap.Logger
}

func NewModerationService(
	reportRepo interfaces.ReportRepository,
	userRepo interfaces.UserRepository,
	storyRepo interfaces.StoryRepository,
	auth AuthService,
	notifier NotificationService,
	logger *zap.Logger,
) ModerationService {
	return &moderationServiceImpl{
		reportRepo: reportRepo,
		userRepo:   userRepo,
		storyRepo:  storyRepo,
		auth:       auth,
		notifier:   notifier,
		logger:     logger.Named("ModerationService"),
	}
}

// requireModerator проверяет глобальную модераторскую роль вызывающего.
func (s *moderationServiceImpl) requireModerator(ctx context.Context, callerID uuid.UUID) (*models.User, error) {
	caller, err := s.userRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsModerator() {
		return nil, models.ErrForbidden
	}
	return caller, nil
}

func (s *moderationServiceImpl) CreateReport(ctx context.Context, reporterID uuid.UUID, storyID, segmentID *uuid.UUID, reason string, details *string) (*models.ContentReport, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: report reason is required", models.ErrInvalidInput)
	}
	if len(reason) > reportReasonMaxLen {
		return nil, fmt.Errorf("%w: report reason is too long", models.ErrInvalidInput)
	}
	if storyID == nil && segmentID == nil {
		return nil, fmt.Errorf("%w: report must reference a story or a segment", models.ErrInvalidInput)
	}
	// Проверяем, что история существует, до записи жалобы
	if storyID != nil {
		if _, err := s.storyRepo.GetByID(ctx, *storyID); err != nil {
			return nil, err
		}
	}

	report := &models.ContentReport{
		ReporterID: reporterID,
		StoryID:    storyID,
		SegmentID:  segmentID,
		Reason:     reason,
		Details:    details,
		Status:     models.ReportStatusPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info("Content report created",
		zap.String("reportID", report.ID.String()),
		zap.String("reporterID", reporterID.String()))
	return report, nil
}

func (s *moderationServiceImpl) GetReport(ctx context.Context, callerID, reportID uuid.UUID) (*models.ContentReport, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	// Жалобу видит модератор или сам заявитель
	if report.ReporterID != callerID {
		if _, err := s.requireModerator(ctx, callerID); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (s *moderationServiceImpl) ListReports(ctx context.Context, callerID uuid.UUID, status models.ReportStatus, limit, offset int) ([]models.ContentReport, error) {
	if _, err := s.requireModerator(ctx, callerID); err != nil {
		return nil, err
	}
	return s.reportRepo.ListByStatus(ctx, status, normalizeLimit(limit), offset)
}

func (s *moderationServiceImpl) ReviewReport(ctx context.Context, reviewerID, reportID uuid.UUID, status models.ReportStatus, resolution *string) (*models.ContentReport, error) {
	if _, err := s.requireModerator(ctx, reviewerID); err != nil {
		return nil, err
	}
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !models.ReportStatusTransitionAllowed(report.Status, status) {
		return nil, fmt.Errorf("%w: report cannot move from %s to %s", models.ErrInvalidStatusChange, report.Status, status)
	}

	if err := s.reportRepo.UpdateReview(ctx, reportID, status, reviewerID, resolution); err != nil {
		return nil, err
	}
	report.Status = status
	report.ReviewerID = &reviewerID
	if resolution != nil {
		report.Resolution = resolution
	}

	// Заявителя уведомляем только о терминальном исходе
	if status == models.ReportStatusResolved || status == models.ReportStatusDismissed {
		body := fmt.Sprintf("Your report has been %s.", status)
		s.notifier.NotifyModeration(ctx, report.ReporterID, "Report reviewed", body)
	}

	s.logger.Info("Content report reviewed",
		zap.String("reportID", reportID.String()),
		zap.String("reviewerID", reviewerID.String()),
		zap.String("status", string(status)))
	return report, nil
}

// BanUser блокирует пользователя и отзывает все его сессии.
func (s *moderationServiceImpl) BanUser(ctx context.Context, callerID, targetID uuid.UUID, reason string) error {
	caller, err := s.requireModerator(ctx, callerID)
	if err != nil {
		return err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	// Модератор не может банить модераторов, админ - может
	if target.IsModerator() && !models.HasRole(caller.Roles, models.UserRoleAdmin) && !models.HasRole(caller.Roles, models.UserRoleSuperAdmin) {
		return models.ErrForbidden
	}

	if err := s.userRepo.SetBanned(ctx, targetID, true); err != nil {
		return err
	}
	if err := s.auth.RevokeAllTokens(ctx, targetID); err != nil {
		s.logger.Error("Failed to revoke tokens of banned user", zap.Error(err), zap.String("userID", targetID.String()))
	}

	s.logger.Warn("User banned",
		zap.String("userID", targetID.String()),
		zap.String("moderatorID", callerID.String()),
		zap.String("reason", reason))
	return nil
}

func (s *moderationServiceImpl) UnbanUser(ctx context.Context, callerID, targetID uuid.UUID) error {
	if _, err := s.requireModerator(ctx, callerID); err != nil {
		return err
	}
	if err := s.userRepo.SetBanned(ctx, targetID, false); err != nil {
		return err
	}
	s.notifier.NotifyModeration(ctx, targetID, "Account restored", "Your account has been unbanned.")
	s.logger.Info("User unbanned",
		zap.String("userID", targetID.String()),
		zap.String("moderatorID", callerID.String()))
	return nil
}

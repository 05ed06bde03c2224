package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"wove-server/internal/models"
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, tx pgx.Tx, story *models.Story) error {
	args := m.Called(ctx, tx, story)
	return args.Error(0)
}
func (m *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, tx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) Update(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}
func (m *StoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}
func (m *StoryRepository) SetCurrentTurnTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, userID *uuid.UUID) error {
	args := m.Called(ctx, tx, storyID, userID)
	return args.Error(0)
}
func (m *StoryRepository) ListByCollaborator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error) {
	args := m.Called(ctx, userID, limit, offset)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) ListPublished(ctx context.Context, maxTier models.AgeTier, limit, offset int) ([]models.Story, error) {
	args := m.Called(ctx, maxTier, limit, offset)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock SegmentRepository
type SegmentRepository struct {
	mock.Mock
}

func (m *SegmentRepository) CreateTx(ctx context.Context, tx pgx.Tx, segment *models.StorySegment) error {
	args := m.Called(ctx, tx, segment)
	return args.Error(0)
}
func (m *SegmentRepository) MaxPositionTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) (int, error) {
	args := m.Called(ctx, tx, storyID)
	return args.Int(0), args.Error(1)
}
func (m *SegmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StorySegment, error) {
	args := m.Called(ctx, id)
	seg, _ := args.Get(0).(*models.StorySegment)
	return seg, args.Error(1)
}
func (m *SegmentRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StorySegment, error) {
	args := m.Called(ctx, storyID)
	segs, _ := args.Get(0).([]models.StorySegment)
	return segs, args.Error(1)
}
func (m *SegmentRepository) CountByStory(ctx context.Context, storyID uuid.UUID) (int, error) {
	args := m.Called(ctx, storyID)
	return args.Int(0), args.Error(1)
}
func (m *SegmentRepository) DeleteTx(ctx context.Context, tx pgx.Tx, storyID, segmentID uuid.UUID) error {
	args := m.Called(ctx, tx, storyID, segmentID)
	return args.Error(0)
}
func (m *SegmentRepository) ReorderTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, orderedIDs []uuid.UUID) error {
	args := m.Called(ctx, tx, storyID, orderedIDs)
	return args.Error(0)
}

// Mock CollaboratorRepository
type CollaboratorRepository struct {
	mock.Mock
}

func (m *CollaboratorRepository) Create(ctx context.Context, tx pgx.Tx, collab *models.StoryCollaborator) error {
	args := m.Called(ctx, tx, collab)
	return args.Error(0)
}
func (m *CollaboratorRepository) GetByStoryAndUser(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryCollaborator, error) {
	args := m.Called(ctx, storyID, userID)
	collab, _ := args.Get(0).(*models.StoryCollaborator)
	return collab, args.Error(1)
}
func (m *CollaboratorRepository) ListByStoryTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) ([]models.StoryCollaborator, error) {
	args := m.Called(ctx, tx, storyID)
	collabs, _ := args.Get(0).([]models.StoryCollaborator)
	return collabs, args.Error(1)
}
func (m *CollaboratorRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryCollaborator, error) {
	args := m.Called(ctx, storyID)
	collabs, _ := args.Get(0).([]models.StoryCollaborator)
	return collabs, args.Error(1)
}
func (m *CollaboratorRepository) UpdateRole(ctx context.Context, storyID, userID uuid.UUID, role models.CollaboratorRole) error {
	args := m.Called(ctx, storyID, userID, role)
	return args.Error(0)
}
func (m *CollaboratorRepository) AcceptInvitation(ctx context.Context, storyID, userID uuid.UUID) error {
	args := m.Called(ctx, storyID, userID)
	return args.Error(0)
}
func (m *CollaboratorRepository) Remove(ctx context.Context, storyID, userID uuid.UUID) error {
	args := m.Called(ctx, storyID, userID)
	return args.Error(0)
}
func (m *CollaboratorRepository) IncrementContributionTx(ctx context.Context, tx pgx.Tx, storyID, userID uuid.UUID) error {
	args := m.Called(ctx, tx, storyID, userID)
	return args.Error(0)
}

// Mock BranchRepository
type BranchRepository struct {
	mock.Mock
}

func (m *BranchRepository) CreateTx(ctx context.Context, tx pgx.Tx, bp *models.StoryBranchPoint) error {
	args := m.Called(ctx, tx, bp)
	return args.Error(0)
}
func (m *BranchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBranchPoint, error) {
	args := m.Called(ctx, id)
	bp, _ := args.Get(0).(*models.StoryBranchPoint)
	return bp, args.Error(1)
}
func (m *BranchRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.StoryBranchPoint, error) {
	args := m.Called(ctx, tx, id)
	bp, _ := args.Get(0).(*models.StoryBranchPoint)
	return bp, args.Error(1)
}
func (m *BranchRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryBranchPoint, error) {
	args := m.Called(ctx, storyID)
	bps, _ := args.Get(0).([]models.StoryBranchPoint)
	return bps, args.Error(1)
}
func (m *BranchRepository) ResolveTx(ctx context.Context, tx pgx.Tx, branchID, optionID, targetSegmentID uuid.UUID) error {
	args := m.Called(ctx, tx, branchID, optionID, targetSegmentID)
	return args.Error(0)
}

// Mock MemoryRepository
type MemoryRepository struct {
	mock.Mock
}

func (m *MemoryRepository) CreateCharacter(ctx context.Context, ch *models.StoryCharacter) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}
func (m *MemoryRepository) ListCharacters(ctx context.Context, storyID uuid.UUID) ([]models.StoryCharacter, error) {
	args := m.Called(ctx, storyID)
	chars, _ := args.Get(0).([]models.StoryCharacter)
	return chars, args.Error(1)
}
func (m *MemoryRepository) CreatePlotPoint(ctx context.Context, pp *models.StoryPlotPoint) error {
	args := m.Called(ctx, pp)
	return args.Error(0)
}
func (m *MemoryRepository) ListPlotPoints(ctx context.Context, storyID uuid.UUID, limit int) ([]models.StoryPlotPoint, error) {
	args := m.Called(ctx, storyID, limit)
	pps, _ := args.Get(0).([]models.StoryPlotPoint)
	return pps, args.Error(1)
}

// Mock UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	args := m.Called(ctx, id, banned)
	return args.Error(0)
}
func (m *UserRepository) UpdateVerifiedAgeTier(ctx context.Context, id uuid.UUID, tier models.AgeTier) error {
	args := m.Called(ctx, id, tier)
	return args.Error(0)
}

// Mock MediaRepository
type MediaRepository struct {
	mock.Mock
}

func (m *MediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}
func (m *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error) {
	args := m.Called(ctx, id)
	asset, _ := args.Get(0).(*models.MediaAsset)
	return asset, args.Error(1)
}
func (m *MediaRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MediaAssetStatus, url, provider, errDetails *string) error {
	args := m.Called(ctx, id, status, url, provider, errDetails)
	return args.Error(0)
}
func (m *MediaRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.MediaAsset, error) {
	args := m.Called(ctx, storyID)
	assets, _ := args.Get(0).([]models.MediaAsset)
	return assets, args.Error(1)
}

// Mock NotificationRepository
type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
func (m *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	ns, _ := args.Get(0).([]models.Notification)
	return ns, args.Error(1)
}
func (m *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}
func (m *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// Mock ReportRepository
type ReportRepository struct {
	mock.Mock
}

func (m *ReportRepository) Create(ctx context.Context, report *models.ContentReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}
func (m *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ContentReport, error) {
	args := m.Called(ctx, id)
	report, _ := args.Get(0).(*models.ContentReport)
	return report, args.Error(1)
}
func (m *ReportRepository) ListByStatus(ctx context.Context, status models.ReportStatus, limit, offset int) ([]models.ContentReport, error) {
	args := m.Called(ctx, status, limit, offset)
	reports, _ := args.Get(0).([]models.ContentReport)
	return reports, args.Error(1)
}
func (m *ReportRepository) UpdateReview(ctx context.Context, id uuid.UUID, status models.ReportStatus, reviewerID uuid.UUID, resolution *string) error {
	args := m.Called(ctx, id, status, reviewerID, resolution)
	return args.Error(0)
}

// Mock ParentalRepository
type ParentalRepository struct {
	mock.Mock
}

func (m *ParentalRepository) CreateLink(ctx context.Context, link *models.ParentalLink) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}
func (m *ParentalRepository) GetLinkByID(ctx context.Context, id uuid.UUID) (*models.ParentalLink, error) {
	args := m.Called(ctx, id)
	link, _ := args.Get(0).(*models.ParentalLink)
	return link, args.Error(1)
}
func (m *ParentalRepository) GetLink(ctx context.Context, parentID, childID uuid.UUID) (*models.ParentalLink, error) {
	args := m.Called(ctx, parentID, childID)
	link, _ := args.Get(0).(*models.ParentalLink)
	return link, args.Error(1)
}
func (m *ParentalRepository) UpdateLinkStatus(ctx context.Context, id uuid.UUID, status models.ParentalLinkStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}
func (m *ParentalRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ParentalLink, error) {
	args := m.Called(ctx, parentID)
	links, _ := args.Get(0).([]models.ParentalLink)
	return links, args.Error(1)
}
func (m *ParentalRepository) ListParents(ctx context.Context, childID uuid.UUID) ([]models.ParentalLink, error) {
	args := m.Called(ctx, childID)
	links, _ := args.Get(0).([]models.ParentalLink)
	return links, args.Error(1)
}
func (m *ParentalRepository) CreateVerification(ctx context.Context, req *models.AgeVerificationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *ParentalRepository) GetVerificationByID(ctx context.Context, id uuid.UUID) (*models.AgeVerificationRequest, error) {
	args := m.Called(ctx, id)
	req, _ := args.Get(0).(*models.AgeVerificationRequest)
	return req, args.Error(1)
}
func (m *ParentalRepository) ListVerifications(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.AgeVerificationRequest, error) {
	args := m.Called(ctx, status, limit, offset)
	reqs, _ := args.Get(0).([]models.AgeVerificationRequest)
	return reqs, args.Error(1)
}
func (m *ParentalRepository) UpdateVerification(ctx context.Context, id uuid.UUID, status models.VerificationStatus, reviewerID uuid.UUID) error {
	args := m.Called(ctx, id, status, reviewerID)
	return args.Error(0)
}

// Mock DeviceTokenRepository
type DeviceTokenRepository struct {
	mock.Mock
}

func (m *DeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
func (m *DeviceTokenRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]models.DeviceToken)
	return tokens, args.Error(1)
}
func (m *DeviceTokenRepository) Delete(ctx context.Context, userID uuid.UUID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

// Mock TokenRepository
type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	args := m.Called(ctx, userID, td)
	return args.Error(0)
}
func (m *TokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, accessUUID)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}
func (m *TokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, refreshUUID)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}
func (m *TokenRepository) DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) error {
	args := m.Called(ctx, userID, accessUUID, refreshUUID)
	return args.Error(0)
}
func (m *TokenRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

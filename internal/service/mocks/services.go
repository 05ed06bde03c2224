package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"wove-server/internal/messaging"
	"wove-server/internal/models"
)

// Mock NotificationService
type NotificationService struct {
	mock.Mock
}

func (m *NotificationService) NotifyInvitation(ctx context.Context, story *models.Story, inviteeID uuid.UUID, role models.CollaboratorRole) {
	m.Called(ctx, story, inviteeID, role)
}
func (m *NotificationService) NotifyTurnGranted(ctx context.Context, story *models.Story, userID uuid.UUID) {
	m.Called(ctx, story, userID)
}
func (m *NotificationService) NotifyStoryPublished(ctx context.Context, story *models.Story) {
	m.Called(ctx, story)
}
func (m *NotificationService) NotifyMediaReady(ctx context.Context, asset *models.MediaAsset, recipients []uuid.UUID) {
	m.Called(ctx, asset, recipients)
}
func (m *NotificationService) NotifyModeration(ctx context.Context, userID uuid.UUID, title, body string) {
	m.Called(ctx, userID, title, body)
}
func (m *NotificationService) NotifyParental(ctx context.Context, userID uuid.UUID, title, body string) {
	m.Called(ctx, userID, title, body)
}
func (m *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit, offset)
	ns, _ := args.Get(0).([]models.Notification)
	return ns, args.Error(1)
}
func (m *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, notificationID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, token string, platform models.DevicePlatform) error {
	args := m.Called(ctx, userID, token, platform)
	return args.Error(0)
}
func (m *NotificationService) UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

// Mock MediaService
type MediaService struct {
	mock.Mock
}

func (m *MediaService) RequestGeneration(ctx context.Context, callerID, storyID uuid.UUID, segmentID *uuid.UUID, kind models.MediaKind, prompt string) (*models.MediaAsset, error) {
	args := m.Called(ctx, callerID, storyID, segmentID, kind, prompt)
	asset, _ := args.Get(0).(*models.MediaAsset)
	return asset, args.Error(1)
}
func (m *MediaService) RequestAuto(ctx context.Context, story *models.Story, segment *models.StorySegment) {
	m.Called(ctx, story, segment)
}
func (m *MediaService) ApplyResult(ctx context.Context, result messaging.MediaResultPayload) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}
func (m *MediaService) GetAsset(ctx context.Context, callerID, assetID uuid.UUID) (*models.MediaAsset, error) {
	args := m.Called(ctx, callerID, assetID)
	asset, _ := args.Get(0).(*models.MediaAsset)
	return asset, args.Error(1)
}
func (m *MediaService) ListByStory(ctx context.Context, callerID, storyID uuid.UUID) ([]models.MediaAsset, error) {
	args := m.Called(ctx, callerID, storyID)
	assets, _ := args.Get(0).([]models.MediaAsset)
	return assets, args.Error(1)
}

// Mock MemoryScanner
type MemoryScanner struct {
	mock.Mock
}

func (m *MemoryScanner) ScanSegment(ctx context.Context, storyID uuid.UUID, segment *models.StorySegment) error {
	args := m.Called(ctx, storyID, segment)
	return args.Error(0)
}

// Mock AIContextBuilder
type AIContextBuilder struct {
	mock.Mock
}

func (m *AIContextBuilder) BuildPrompt(ctx context.Context, story *models.Story) (string, error) {
	args := m.Called(ctx, story)
	return args.String(0), args.Error(1)
}

// Mock AuthService
type AuthService struct {
	mock.Mock
}

func (m *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *AuthService) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	args := m.Called(ctx, username, password)
	td, _ := args.Get(0).(*models.TokenDetails)
	return td, args.Error(1)
}
func (m *AuthService) Logout(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) error {
	args := m.Called(ctx, userID, accessUUID, refreshUUID)
	return args.Error(0)
}
func (m *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	args := m.Called(ctx, refreshToken)
	td, _ := args.Get(0).(*models.TokenDetails)
	return td, args.Error(1)
}
func (m *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	args := m.Called(ctx, tokenString)
	claims, _ := args.Get(0).(*models.Claims)
	return claims, args.Error(1)
}
func (m *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *AuthService) RevokeAllTokens(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Mock AIProvider
type AIProvider struct {
	mock.Mock
}

func (m *AIProvider) Name() string {
	args := m.Called()
	return args.String(0)
}
func (m *AIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}
func (m *AIProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

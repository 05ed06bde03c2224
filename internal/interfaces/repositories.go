package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wove-server/internal/models"
)

// StoryRepository управляет строками таблицы stories.
type StoryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, story *models.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)
	// GetForUpdateTx блокирует строку истории (SELECT ... FOR UPDATE) на время
	// транзакции. Все операции, назначающие позиции сегментов или ход,
	// обязаны проходить через эту блокировку.
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Story, error)
	Update(ctx context.Context, story *models.Story) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus) error
	SetCurrentTurnTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, userID *uuid.UUID) error
	ListByCollaborator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error)
	ListPublished(ctx context.Context, maxTier models.AgeTier, limit, offset int) ([]models.Story, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SegmentRepository управляет сегментами историй.
type SegmentRepository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, segment *models.StorySegment) error
	// MaxPositionTx возвращает максимальную позицию в истории или -1, если сегментов нет.
	MaxPositionTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.StorySegment, error)
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StorySegment, error)
	CountByStory(ctx context.Context, storyID uuid.UUID) (int, error)
	// DeleteTx удаляет сегмент и сдвигает позиции последующих сегментов вниз,
	// сохраняя плотность 0..N-1.
	DeleteTx(ctx context.Context, tx pgx.Tx, storyID, segmentID uuid.UUID) error
	// ReorderTx переставляет сегменты согласно полному списку ID в новом порядке.
	ReorderTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, orderedIDs []uuid.UUID) error
}

// CollaboratorRepository управляет участниками историй.
type CollaboratorRepository interface {
	Create(ctx context.Context, tx pgx.Tx, collab *models.StoryCollaborator) error
	// GetByStoryAndUser возвращает models.ErrNotCollaborator, если записи нет.
	GetByStoryAndUser(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryCollaborator, error)
	// ListByStoryTx возвращает участников в порядке присоединения (created_at ASC).
	ListByStoryTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) ([]models.StoryCollaborator, error)
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryCollaborator, error)
	UpdateRole(ctx context.Context, storyID, userID uuid.UUID, role models.CollaboratorRole) error
	AcceptInvitation(ctx context.Context, storyID, userID uuid.UUID) error
	Remove(ctx context.Context, storyID, userID uuid.UUID) error
	IncrementContributionTx(ctx context.Context, tx pgx.Tx, storyID, userID uuid.UUID) error
}

// BranchRepository управляет точками ветвления и вариантами выбора.
type BranchRepository interface {
	// CreateTx вставляет точку ветвления вместе с вариантами. Нарушение
	// уникальности source_segment_id транслируется в models.ErrBranchPointExists.
	CreateTx(ctx context.Context, tx pgx.Tx, bp *models.StoryBranchPoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBranchPoint, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.StoryBranchPoint, error)
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryBranchPoint, error)
	// ResolveTx помечает точку разрешенной и проставляет target_segment_id
	// выбранному варианту. После этого точка неизменяема.
	ResolveTx(ctx context.Context, tx pgx.Tx, branchID, optionID, targetSegmentID uuid.UUID) error
}

// MemoryRepository хранит "память" истории: персонажей и сюжетные события.
type MemoryRepository interface {
	CreateCharacter(ctx context.Context, ch *models.StoryCharacter) error
	ListCharacters(ctx context.Context, storyID uuid.UUID) ([]models.StoryCharacter, error)
	// CreatePlotPoint назначает следующий монотонный sequence внутри истории.
	CreatePlotPoint(ctx context.Context, pp *models.StoryPlotPoint) error
	ListPlotPoints(ctx context.Context, storyID uuid.UUID, limit int) ([]models.StoryPlotPoint, error)
}

// UserRepository управляет пользователями.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
	UpdateVerifiedAgeTier(ctx context.Context, id uuid.UUID, tier models.AgeTier) error
}

// MediaRepository управляет ассетами медиа.
type MediaRepository interface {
	Create(ctx context.Context, asset *models.MediaAsset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.MediaAssetStatus, url, provider, errDetails *string) error
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.MediaAsset, error)
}

// NotificationRepository управляет персистентными уведомлениями.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ReportRepository управляет жалобами на контент.
type ReportRepository interface {
	Create(ctx context.Context, report *models.ContentReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ContentReport, error)
	ListByStatus(ctx context.Context, status models.ReportStatus, limit, offset int) ([]models.ContentReport, error)
	UpdateReview(ctx context.Context, id uuid.UUID, status models.ReportStatus, reviewerID uuid.UUID, resolution *string) error
}

// ParentalRepository управляет родительскими связями и заявками на возраст.
type ParentalRepository interface {
	CreateLink(ctx context.Context, link *models.ParentalLink) error
	GetLinkByID(ctx context.Context, id uuid.UUID) (*models.ParentalLink, error)
	GetLink(ctx context.Context, parentID, childID uuid.UUID) (*models.ParentalLink, error)
	UpdateLinkStatus(ctx context.Context, id uuid.UUID, status models.ParentalLinkStatus) error
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ParentalLink, error)
	ListParents(ctx context.Context, childID uuid.UUID) ([]models.ParentalLink, error)
	CreateVerification(ctx context.Context, req *models.AgeVerificationRequest) error
	GetVerificationByID(ctx context.Context, id uuid.UUID) (*models.AgeVerificationRequest, error)
	ListVerifications(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.AgeVerificationRequest, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, status models.VerificationStatus, reviewerID uuid.UUID) error
}

// DeviceTokenRepository хранит push-токены устройств.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceToken, error)
	Delete(ctx context.Context, userID uuid.UUID, token string) error
}

// TokenRepository хранит идентификаторы выпущенных JWT токенов (Redis).
type TokenRepository interface {
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error
	// GetUserIDByAccessUUID возвращает models.ErrTokenNotFound для отозванных токенов.
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error)
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error)
	DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

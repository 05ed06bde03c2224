package database

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgNotificationRepository implements NotificationRepository
var _ interfaces.NotificationRepository = (*pgNotificationRepository)(nil)

type pgNotificationRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgNotificationRepository creates a new PostgreSQL-backed NotificationRepository.
func NewPgNotificationRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.NotificationRepository {
	return &pgNotificationRepository{
		db:     db,
		logger: logger.Named("PgNotificationRepo"),
	}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (user_id, type, title, body, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, n.UserID, n.Type, n.Title, n.Body, n.Data).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Error(err), zap.String("userID", n.UserID.String()))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, title, body, data, read_at, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	var items []models.Notification
	if err := pgxscan.Select(ctx, r.db, &items, query, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, nil
}

// MarkRead is scoped to the owner so a user cannot mark someone else's
// notification.
func (r *pgNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read_at = now() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID, userID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Error(err), zap.String("notificationID", notificationID.String()))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}

func (r *pgNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notifications SET read_at = now() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		r.logger.Error("Failed to mark all notifications read", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count unread notifications", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

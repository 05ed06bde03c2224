package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgParentalRepository implements ParentalRepository
var _ interfaces.ParentalRepository = (*pgParentalRepository)(nil)

type pgParentalRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgParentalRepository creates a new PostgreSQL-backed ParentalRepository.
func NewPgParentalRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ParentalRepository {
	return &pgParentalRepository{
		db:     db,
		logger: logger.Named("PgParentalRepo"),
	}
}

const linkColumns = `id, parent_user_id, child_user_id, status, created_at, updated_at`

// CreateLink inserts a pending parent-child link. The UNIQUE(parent, child)
// constraint rejects a second link for the same pair.
func (r *pgParentalRepository) CreateLink(ctx context.Context, link *models.ParentalLink) error {
	query := `INSERT INTO parental_links (parent_user_id, child_user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, link.ParentUserID, link.ChildUserID, link.Status).
		Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrInvalidInput
		}
		r.logger.Error("Failed to create parental link", zap.Error(err),
			zap.String("parentID", link.ParentUserID.String()),
			zap.String("childID", link.ChildUserID.String()))
		return fmt.Errorf("failed to create parental link: %w", err)
	}
	return nil
}

func (r *pgParentalRepository) GetLinkByID(ctx context.Context, id uuid.UUID) (*models.ParentalLink, error) {
	return r.scanLink(r.db.QueryRow(ctx, `SELECT `+linkColumns+` FROM parental_links WHERE id = $1`, id))
}

func (r *pgParentalRepository) GetLink(ctx context.Context, parentID, childID uuid.UUID) (*models.ParentalLink, error) {
	return r.scanLink(r.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM parental_links WHERE parent_user_id = $1 AND child_user_id = $2`,
		parentID, childID))
}

func (r *pgParentalRepository) scanLink(row pgx.Row) (*models.ParentalLink, error) {
	link := &models.ParentalLink{}
	err := row.Scan(&link.ID, &link.ParentUserID, &link.ChildUserID, &link.Status, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrParentalLinkNotFound
		}
		r.logger.Error("Failed to get parental link", zap.Error(err))
		return nil, fmt.Errorf("failed to get parental link: %w", err)
	}
	return link, nil
}

func (r *pgParentalRepository) UpdateLinkStatus(ctx context.Context, id uuid.UUID, status models.ParentalLinkStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE parental_links SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("Failed to update parental link status", zap.Error(err), zap.String("linkID", id.String()))
		return fmt.Errorf("failed to update parental link status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrParentalLinkNotFound
	}
	return nil
}

func (r *pgParentalRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.ParentalLink, error) {
	var links []models.ParentalLink
	query := `SELECT ` + linkColumns + ` FROM parental_links
		WHERE parent_user_id = $1 AND status <> 'revoked' ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &links, query, parentID); err != nil {
		r.logger.Error("Failed to list children links", zap.Error(err), zap.String("parentID", parentID.String()))
		return nil, fmt.Errorf("failed to list children links: %w", err)
	}
	return links, nil
}

func (r *pgParentalRepository) ListParents(ctx context.Context, childID uuid.UUID) ([]models.ParentalLink, error) {
	var links []models.ParentalLink
	query := `SELECT ` + linkColumns + ` FROM parental_links
		WHERE child_user_id = $1 AND status <> 'revoked' ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &links, query, childID); err != nil {
		r.logger.Error("Failed to list parent links", zap.Error(err), zap.String("childID", childID.String()))
		return nil, fmt.Errorf("failed to list parent links: %w", err)
	}
	return links, nil
}

const verificationColumns = `id, user_id, requested_tier, method, status, reviewer_id, created_at, updated_at`

func (r *pgParentalRepository) CreateVerification(ctx context.Context, req *models.AgeVerificationRequest) error {
	query := `INSERT INTO age_verification_requests (user_id, requested_tier, method, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, req.UserID, req.RequestedTier, req.Method, req.Status).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create age verification request", zap.Error(err), zap.String("userID", req.UserID.String()))
		return fmt.Errorf("failed to create age verification request: %w", err)
	}
	return nil
}

func (r *pgParentalRepository) GetVerificationByID(ctx context.Context, id uuid.UUID) (*models.AgeVerificationRequest, error) {
	req := &models.AgeVerificationRequest{}
	err := r.db.QueryRow(ctx,
		`SELECT `+verificationColumns+` FROM age_verification_requests WHERE id = $1`, id).Scan(
		&req.ID, &req.UserID, &req.RequestedTier, &req.Method, &req.Status,
		&req.ReviewerID, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrVerificationNotFound
		}
		r.logger.Error("Failed to get age verification request", zap.Error(err), zap.String("requestID", id.String()))
		return nil, fmt.Errorf("failed to get age verification request: %w", err)
	}
	return req, nil
}

func (r *pgParentalRepository) ListVerifications(ctx context.Context, status models.VerificationStatus, limit, offset int) ([]models.AgeVerificationRequest, error) {
	var reqs []models.AgeVerificationRequest
	query := `SELECT ` + verificationColumns + ` FROM age_verification_requests
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	if err := pgxscan.Select(ctx, r.db, &reqs, query, status, limit, offset); err != nil {
		r.logger.Error("Failed to list age verification requests", zap.Error(err), zap.String("status", string(status)))
		return nil, fmt.Errorf("failed to list age verification requests: %w", err)
	}
	return reqs, nil
}

// UpdateVerification finalizes a pending request; already decided requests
// are left untouched.
func (r *pgParentalRepository) UpdateVerification(ctx context.Context, id uuid.UUID, status models.VerificationStatus, reviewerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE age_verification_requests
		SET status = $2, reviewer_id = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id, status, reviewerID)
	if err != nil {
		r.logger.Error("Failed to update age verification request", zap.Error(err), zap.String("requestID", id.String()))
		return fmt.Errorf("failed to update age verification request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidStatusChange
	}
	return nil
}

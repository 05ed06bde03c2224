package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgMediaRepository implements MediaRepository
var _ interfaces.MediaRepository = (*pgMediaRepository)(nil)

type pgMediaRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgMediaRepository creates a new PostgreSQL-backed MediaRepository.
func NewPgMediaRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.MediaRepository {
	return &pgMediaRepository{
		db:     db,
		logger: logger.Named("PgMediaRepo"),
	}
}

const mediaColumns = `id, story_id, segment_id, kind, status, url, provider, prompt, error_details, created_at, updated_at`

func (r *pgMediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	query := `INSERT INTO media_assets (story_id, segment_id, kind, status, prompt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		asset.StoryID, asset.SegmentID, asset.Kind, asset.Status, asset.Prompt,
	).Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create media asset", zap.Error(err), zap.String("storyID", asset.StoryID.String()))
		return fmt.Errorf("failed to create media asset: %w", err)
	}
	return nil
}

func (r *pgMediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error) {
	asset := &models.MediaAsset{}
	err := r.db.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media_assets WHERE id = $1`, id).Scan(
		&asset.ID, &asset.StoryID, &asset.SegmentID, &asset.Kind, &asset.Status,
		&asset.URL, &asset.Provider, &asset.Prompt, &asset.ErrorDetails,
		&asset.CreatedAt, &asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMediaAssetNotFound
		}
		r.logger.Error("Failed to get media asset", zap.Error(err), zap.String("assetID", id.String()))
		return nil, fmt.Errorf("failed to get media asset: %w", err)
	}
	return asset, nil
}

// UpdateStatus advances an asset through its lifecycle. Nil pointers leave
// the corresponding columns untouched, so the worker can mark "generating"
// without clearing a previously recorded error.
func (r *pgMediaRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MediaAssetStatus, url, provider, errDetails *string) error {
	query := `UPDATE media_assets SET
			status = $2,
			url = COALESCE($3, url),
			provider = COALESCE($4, provider),
			error_details = COALESCE($5, error_details),
			updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, url, provider, errDetails)
	if err != nil {
		r.logger.Error("Failed to update media asset status", zap.Error(err), zap.String("assetID", id.String()))
		return fmt.Errorf("failed to update media asset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrMediaAssetNotFound
	}
	return nil
}

func (r *pgMediaRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	query := `SELECT ` + mediaColumns + ` FROM media_assets WHERE story_id = $1 ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &assets, query, storyID); err != nil {
		r.logger.Error("Failed to list media assets", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list media assets: %w", err)
	}
	return assets, nil
}

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

// Compile-time check to ensure pgBranchRepository implements BranchRepository
var _ interfaces.BranchRepository = (*pgBranchRepository)(nil)

type pgBranchRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgBranchRepository creates a new PostgreSQL-backed BranchRepository.
func NewPgBranchRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.BranchRepository {
	return &pgBranchRepository{
		db:     db,
		logger: logger.Named("PgBranchRepo"),
	}
}

const branchColumns = `id, story_id, source_segment_id, prompt_text, selected_option_id, resolved_at, created_at, updated_at`

// CreateTx inserts a branch point together with its options. The unique index
// on source_segment_id doubles as the "one open branch per segment" check:
// a 23505 violation maps to models.ErrBranchPointExists.
func (r *pgBranchRepository) CreateTx(ctx context.Context, tx pgx.Tx, bp *models.StoryBranchPoint) error {
	query := `INSERT INTO story_branch_points (story_id, source_segment_id, prompt_text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, query, bp.StoryID, bp.SourceSegmentID, bp.PromptText).
		Scan(&bp.ID, &bp.CreatedAt, &bp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Branch point already exists for segment",
				zap.String("segmentID", bp.SourceSegmentID.String()))
			return models.ErrBranchPointExists
		}
		r.logger.Error("Failed to create branch point", zap.Error(err), zap.String("storyID", bp.StoryID.String()))
		return fmt.Errorf("failed to create branch point: %w", err)
	}

	for i := range bp.Options {
		opt := &bp.Options[i]
		opt.BranchPointID = bp.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO story_choice_options (branch_point_id, option_text, display_order)
			 VALUES ($1, $2, $3) RETURNING id, created_at`,
			opt.BranchPointID, opt.OptionText, opt.DisplayOrder,
		).Scan(&opt.ID, &opt.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert choice option: %w", err)
		}
	}
	return nil
}

// GetByID returns a branch point with its options loaded.
func (r *pgBranchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryBranchPoint, error) {
	bp, err := r.scanBranch(ctx, r.db.QueryRow(ctx, `SELECT `+branchColumns+` FROM story_branch_points WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadOptions(ctx, r.db, bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// GetForUpdateTx locks the branch point row so that resolution happens exactly once.
func (r *pgBranchRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.StoryBranchPoint, error) {
	bp, err := r.scanBranch(ctx, tx.QueryRow(ctx, `SELECT `+branchColumns+` FROM story_branch_points WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadOptions(ctx, tx, bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// ListByStory returns all branch points of a story with options loaded.
func (r *pgBranchRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryBranchPoint, error) {
	var bps []models.StoryBranchPoint
	query := `SELECT ` + branchColumns + ` FROM story_branch_points WHERE story_id = $1 ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &bps, query, storyID); err != nil {
		r.logger.Error("Failed to list branch points", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list branch points: %w", err)
	}
	for i := range bps {
		if err := r.loadOptions(ctx, r.db, &bps[i]); err != nil {
			return nil, err
		}
	}
	return bps, nil
}

// ResolveTx stamps the branch point as resolved and points the chosen option
// at the first segment of the new branch, all within the caller's transaction.
func (r *pgBranchRepository) ResolveTx(ctx context.Context, tx pgx.Tx, branchID, optionID, targetSegmentID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `UPDATE story_branch_points
		SET selected_option_id = $2, resolved_at = now(), updated_at = now()
		WHERE id = $1 AND resolved_at IS NULL`, branchID, optionID)
	if err != nil {
		return fmt.Errorf("failed to resolve branch point: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Под блокировкой строки сюда можно попасть только при повторном разрешении
		return models.ErrBranchAlreadyResolved
	}

	tag, err = tx.Exec(ctx, `UPDATE story_choice_options SET target_segment_id = $3
		WHERE id = $2 AND branch_point_id = $1`, branchID, optionID, targetSegmentID)
	if err != nil {
		return fmt.Errorf("failed to set option target segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrChoiceOptionInvalid
	}
	return nil
}

func (r *pgBranchRepository) scanBranch(ctx context.Context, row pgx.Row) (*models.StoryBranchPoint, error) {
	bp := &models.StoryBranchPoint{}
	err := row.Scan(&bp.ID, &bp.StoryID, &bp.SourceSegmentID, &bp.PromptText,
		&bp.SelectedOptionID, &bp.ResolvedAt, &bp.CreatedAt, &bp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBranchPointNotFound
		}
		r.logger.Error("Failed to get branch point", zap.Error(err))
		return nil, fmt.Errorf("failed to get branch point: %w", err)
	}
	return bp, nil
}

func (r *pgBranchRepository) loadOptions(ctx context.Context, q interfaces.DBTX, bp *models.StoryBranchPoint) error {
	query := `SELECT id, branch_point_id, option_text, display_order, target_segment_id, created_at
		FROM story_choice_options WHERE branch_point_id = $1 ORDER BY display_order ASC`
	if err := pgxscan.Select(ctx, q, &bp.Options, query, bp.ID); err != nil {
		return fmt.Errorf("failed to load choice options: %w", err)
	}
	return nil
}

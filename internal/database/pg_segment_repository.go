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

// Compile-time check to ensure pgSegmentRepository implements SegmentRepository
var _ interfaces.SegmentRepository = (*pgSegmentRepository)(nil)

type pgSegmentRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgSegmentRepository creates a new PostgreSQL-backed SegmentRepository.
func NewPgSegmentRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.SegmentRepository {
	return &pgSegmentRepository{
		db:     db,
		logger: logger.Named("PgSegmentRepo"),
	}
}

// CreateTx inserts a segment within the transaction that holds the story lock.
// A unique violation on (story_id, position) here means the caller computed the
// position without the lock; that is a programming error, not user input.
func (r *pgSegmentRepository) CreateTx(ctx context.Context, tx pgx.Tx, segment *models.StorySegment) error {
	query := `INSERT INTO story_segments (story_id, creator_id, content, position, is_ai_generated, parent_choice_option_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		segment.StoryID, segment.CreatorID, segment.Content, segment.Position,
		segment.IsAIGenerated, segment.ParentChoiceOptionID,
	).Scan(&segment.ID, &segment.CreatedAt, &segment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Error("Position collision on segment insert",
				zap.String("storyID", segment.StoryID.String()),
				zap.Int("position", segment.Position))
		}
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	return nil
}

// MaxPositionTx returns the maximum position within a story, or -1 when the
// story has no segments. Must be called under the story row lock.
func (r *pgSegmentRepository) MaxPositionTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) (int, error) {
	var max int
	err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), -1) FROM story_segments WHERE story_id = $1`, storyID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max segment position: %w", err)
	}
	return max, nil
}

// GetByID retrieves a segment by its ID.
func (r *pgSegmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StorySegment, error) {
	query := `SELECT id, story_id, creator_id, content, position, is_ai_generated, parent_choice_option_id, created_at, updated_at
		FROM story_segments WHERE id = $1`
	segment := &models.StorySegment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&segment.ID, &segment.StoryID, &segment.CreatorID, &segment.Content, &segment.Position,
		&segment.IsAIGenerated, &segment.ParentChoiceOptionID, &segment.CreatedAt, &segment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSegmentNotFound
		}
		r.logger.Error("Failed to get segment", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return segment, nil
}

// ListByStory returns all segments of a story ordered by position.
func (r *pgSegmentRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StorySegment, error) {
	var segments []models.StorySegment
	query := `SELECT id, story_id, creator_id, content, position, is_ai_generated, parent_choice_option_id, created_at, updated_at
		FROM story_segments WHERE story_id = $1 ORDER BY position ASC`
	if err := pgxscan.Select(ctx, r.db, &segments, query, storyID); err != nil {
		r.logger.Error("Failed to list segments", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return segments, nil
}

// CountByStory returns the number of segments in a story.
func (r *pgSegmentRepository) CountByStory(ctx context.Context, storyID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM story_segments WHERE story_id = $1`, storyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return count, nil
}

// DeleteTx removes a segment and shifts the positions of the segments after it
// down by one, keeping positions dense. Requires the story row lock.
func (r *pgSegmentRepository) DeleteTx(ctx context.Context, tx pgx.Tx, storyID, segmentID uuid.UUID) error {
	var position int
	err := tx.QueryRow(ctx, `DELETE FROM story_segments WHERE id = $1 AND story_id = $2 RETURNING position`,
		segmentID, storyID).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrSegmentNotFound
		}
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	// Сдвиг выполняется в порядке возрастания позиций, поэтому уникальный
	// индекс не нарушается даже без отложенной проверки.
	_, err = tx.Exec(ctx, `UPDATE story_segments SET position = position - 1, updated_at = now()
		WHERE story_id = $1 AND position > $2`, storyID, position)
	if err != nil {
		return fmt.Errorf("failed to shift segment positions: %w", err)
	}
	return nil
}

// ReorderTx rewrites positions according to the full permutation of segment IDs.
// The unique constraint is deferred until commit so intermediate states may
// collide freely.
func (r *pgSegmentRepository) ReorderTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, orderedIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `SET CONSTRAINTS story_segments_story_position_key DEFERRED`); err != nil {
		return fmt.Errorf("failed to defer position constraint: %w", err)
	}
	for i, id := range orderedIDs {
		tag, err := tx.Exec(ctx, `UPDATE story_segments SET position = $3, updated_at = now()
			WHERE id = $1 AND story_id = $2`, id, storyID, i)
		if err != nil {
			return fmt.Errorf("failed to reposition segment %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrSegmentNotFound
		}
	}
	return nil
}

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

// Compile-time check to ensure pgMemoryRepository implements MemoryRepository
var _ interfaces.MemoryRepository = (*pgMemoryRepository)(nil)

type pgMemoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgMemoryRepository creates a new PostgreSQL-backed MemoryRepository.
func NewPgMemoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.MemoryRepository {
	return &pgMemoryRepository{
		db:     db,
		logger: logger.Named("PgMemoryRepo"),
	}
}

// CreateCharacter inserts a character. Rediscovery of an existing name is a
// no-op: the scanner runs after every segment and must stay idempotent.
func (r *pgMemoryRepository) CreateCharacter(ctx context.Context, ch *models.StoryCharacter) error {
	query := `INSERT INTO story_characters (story_id, name, description, traits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (story_id, name) DO NOTHING
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, ch.StoryID, ch.Name, ch.Description, ch.Traits).
		Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Конфликт имени: строка уже есть, RETURNING ничего не вернул
			return nil
		}
		r.logger.Error("Failed to create character", zap.Error(err), zap.String("storyID", ch.StoryID.String()))
		return fmt.Errorf("failed to create character: %w", err)
	}
	return nil
}

// ListCharacters returns all characters of a story ordered by creation time.
func (r *pgMemoryRepository) ListCharacters(ctx context.Context, storyID uuid.UUID) ([]models.StoryCharacter, error) {
	var chars []models.StoryCharacter
	query := `SELECT id, story_id, name, description, traits, created_at, updated_at
		FROM story_characters WHERE story_id = $1 ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &chars, query, storyID); err != nil {
		r.logger.Error("Failed to list characters", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return chars, nil
}

// CreatePlotPoint assigns the next sequence number within the story. Two
// concurrent writers can race on UNIQUE(story_id, sequence); the loser
// retries with a freshly computed sequence.
func (r *pgMemoryRepository) CreatePlotPoint(ctx context.Context, pp *models.StoryPlotPoint) error {
	query := `INSERT INTO story_plot_points (story_id, segment_id, sequence, summary, keyword)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM story_plot_points WHERE story_id = $1), $3, $4)
		RETURNING id, sequence, created_at`

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.db.QueryRow(ctx, query, pp.StoryID, pp.SegmentID, pp.Summary, pp.Keyword).
			Scan(&pp.ID, &pp.Sequence, &pp.CreatedAt)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			lastErr = err
			continue
		}
		r.logger.Error("Failed to create plot point", zap.Error(err), zap.String("storyID", pp.StoryID.String()))
		return fmt.Errorf("failed to create plot point: %w", err)
	}
	return fmt.Errorf("failed to create plot point after %d attempts: %w", maxAttempts, lastErr)
}

// ListPlotPoints returns the most recent plot points in chronological order.
func (r *pgMemoryRepository) ListPlotPoints(ctx context.Context, storyID uuid.UUID, limit int) ([]models.StoryPlotPoint, error) {
	var points []models.StoryPlotPoint
	query := `SELECT id, story_id, segment_id, sequence, summary, keyword, created_at FROM (
			SELECT id, story_id, segment_id, sequence, summary, keyword, created_at
			FROM story_plot_points WHERE story_id = $1 ORDER BY sequence DESC LIMIT $2
		) recent ORDER BY sequence ASC`
	if err := pgxscan.Select(ctx, r.db, &points, query, storyID, limit); err != nil {
		r.logger.Error("Failed to list plot points", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list plot points: %w", err)
	}
	return points, nil
}

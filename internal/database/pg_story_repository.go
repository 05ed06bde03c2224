package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgStoryRepository implements StoryRepository
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a new PostgreSQL-backed StoryRepository.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

const storyColumns = `id, title, description, creator_id, status, age_tier, is_private,
	allow_collaboration, settings, current_turn_user_id, genre_ids, content_warnings,
	created_at, updated_at`

// scanStory reads one story row. Settings are stored as JSONB and decoded
// into the typed struct on read.
func scanStory(row pgx.Row) (*models.Story, error) {
	story := &models.Story{}
	var settingsRaw []byte
	err := row.Scan(
		&story.ID, &story.Title, &story.Description, &story.CreatorID, &story.Status,
		&story.AgeTier, &story.IsPrivate, &story.AllowCollab, &settingsRaw,
		&story.CurrentTurnUserID, &story.GenreIDs, &story.ContentWarnings,
		&story.CreatedAt, &story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	story.Settings = models.DefaultStorySettings()
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &story.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode story settings: %w", err)
		}
	}
	return story, nil
}

// Create inserts a new story row within the given transaction.
func (r *pgStoryRepository) Create(ctx context.Context, tx pgx.Tx, story *models.Story) error {
	settingsRaw, err := json.Marshal(story.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode story settings: %w", err)
	}
	query := `INSERT INTO stories (title, description, creator_id, status, age_tier, is_private,
		allow_collaboration, settings, genre_ids, content_warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, query,
		story.Title, story.Description, story.CreatorID, story.Status, story.AgeTier,
		story.IsPrivate, story.AllowCollab, settingsRaw, story.GenreIDs, story.ContentWarnings,
	).Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create story in postgres", zap.Error(err), zap.String("title", story.Title))
		return fmt.Errorf("failed to create story in postgres: %w", err)
	}
	r.logger.Info("Story created", zap.String("storyID", story.ID.String()), zap.String("creatorID", story.CreatorID.String()))
	return nil
}

// GetByID retrieves a story by its ID.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	story, err := scanStory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found", zap.String("id", id.String()))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story from postgres", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get story from postgres: %w", err)
	}
	return story, nil
}

// GetForUpdateTx locks the story row for the duration of the transaction.
// Every operation that assigns segment positions or passes the turn must
// go through this lock.
func (r *pgStoryRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1 FOR UPDATE`
	story, err := scanStory(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to lock story row", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to lock story row: %w", err)
	}
	return story, nil
}

// Update persists mutable story fields (title, description, flags, settings, status, age tier).
func (r *pgStoryRepository) Update(ctx context.Context, story *models.Story) error {
	settingsRaw, err := json.Marshal(story.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode story settings: %w", err)
	}
	query := `UPDATE stories SET title = $2, description = $3, status = $4, age_tier = $5,
		is_private = $6, allow_collaboration = $7, settings = $8, genre_ids = $9,
		content_warnings = $10, updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		story.ID, story.Title, story.Description, story.Status, story.AgeTier,
		story.IsPrivate, story.AllowCollab, settingsRaw, story.GenreIDs, story.ContentWarnings,
	)
	if err != nil {
		r.logger.Error("Failed to update story", zap.Error(err), zap.String("id", story.ID.String()))
		return fmt.Errorf("failed to update story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// UpdateStatus changes only the story status.
func (r *pgStoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE stories SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		r.logger.Error("Failed to update story status", zap.Error(err), zap.String("id", id.String()), zap.String("status", string(status)))
		return fmt.Errorf("failed to update story status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// SetCurrentTurnTx persists the current turn holder within the transaction.
func (r *pgStoryRepository) SetCurrentTurnTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID, userID *uuid.UUID) error {
	tag, err := tx.Exec(ctx, `UPDATE stories SET current_turn_user_id = $2, updated_at = now() WHERE id = $1`, storyID, userID)
	if err != nil {
		r.logger.Error("Failed to set current turn", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to set current turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// ListByCollaborator returns stories the user participates in, newest first.
func (r *pgStoryRepository) ListByCollaborator(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories s
		WHERE EXISTS (
			SELECT 1 FROM story_collaborators c
			WHERE c.story_id = s.id AND c.user_id = $1 AND c.invitation_accepted
		)
		ORDER BY s.updated_at DESC
		LIMIT $2 OFFSET $3`
	return r.listStories(ctx, query, userID, limit, offset)
}

// ListPublished returns published stories visible at the given age tier or below.
func (r *pgStoryRepository) ListPublished(ctx context.Context, maxTier models.AgeTier, limit, offset int) ([]models.Story, error) {
	// Порядок категорий фиксирован; сравниваем по позиции в массиве
	query := `SELECT ` + storyColumns + ` FROM stories
		WHERE status = 'published' AND NOT is_private
		AND array_position(ARRAY['unverified','kids','teens','adults'], age_tier)
		    <= array_position(ARRAY['unverified','kids','teens','adults'], $1::text)
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`
	return r.listStories(ctx, query, string(maxTier), limit, offset)
}

func (r *pgStoryRepository) listStories(ctx context.Context, query string, args ...any) ([]models.Story, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var stories []models.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate story rows: %w", err)
	}
	return stories, nil
}

// Delete removes a story; dependent rows go away via ON DELETE CASCADE.
func (r *pgStoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story deleted", zap.String("id", id.String()))
	return nil
}

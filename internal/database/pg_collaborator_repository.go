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

// Compile-time check to ensure pgCollaboratorRepository implements CollaboratorRepository
var _ interfaces.CollaboratorRepository = (*pgCollaboratorRepository)(nil)

type pgCollaboratorRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgCollaboratorRepository creates a new PostgreSQL-backed CollaboratorRepository.
func NewPgCollaboratorRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.CollaboratorRepository {
	return &pgCollaboratorRepository{
		db:     db,
		logger: logger.Named("PgCollaboratorRepo"),
	}
}

const collaboratorColumns = `id, story_id, user_id, role, invitation_accepted, contribution_count, created_at, updated_at`

// Create inserts a collaborator row. The unique constraint on (story_id, user_id)
// is the duplicate check.
func (r *pgCollaboratorRepository) Create(ctx context.Context, tx pgx.Tx, collab *models.StoryCollaborator) error {
	query := `INSERT INTO story_collaborators (story_id, user_id, role, invitation_accepted)
		VALUES ($1, $2, $3, $4)
		RETURNING id, contribution_count, created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		collab.StoryID, collab.UserID, collab.Role, collab.InvitationAccepted,
	).Scan(&collab.ID, &collab.ContributionCount, &collab.CreatedAt, &collab.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Duplicate collaborator",
				zap.String("storyID", collab.StoryID.String()),
				zap.String("userID", collab.UserID.String()))
			return models.ErrDuplicateCollaborator
		}
		r.logger.Error("Failed to create collaborator", zap.Error(err), zap.String("storyID", collab.StoryID.String()))
		return fmt.Errorf("failed to create collaborator: %w", err)
	}
	return nil
}

// GetByStoryAndUser returns the unique collaborator row for (story, user).
func (r *pgCollaboratorRepository) GetByStoryAndUser(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryCollaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM story_collaborators WHERE story_id = $1 AND user_id = $2`
	collab := &models.StoryCollaborator{}
	err := r.db.QueryRow(ctx, query, storyID, userID).Scan(
		&collab.ID, &collab.StoryID, &collab.UserID, &collab.Role,
		&collab.InvitationAccepted, &collab.ContributionCount, &collab.CreatedAt, &collab.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotCollaborator
		}
		r.logger.Error("Failed to get collaborator", zap.Error(err),
			zap.String("storyID", storyID.String()), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to get collaborator: %w", err)
	}
	return collab, nil
}

// ListByStoryTx returns collaborators in join order within a transaction.
// Turn advancement depends on this ordering.
func (r *pgCollaboratorRepository) ListByStoryTx(ctx context.Context, tx pgx.Tx, storyID uuid.UUID) ([]models.StoryCollaborator, error) {
	var collabs []models.StoryCollaborator
	query := `SELECT ` + collaboratorColumns + ` FROM story_collaborators
		WHERE story_id = $1 ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, tx, &collabs, query, storyID); err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return collabs, nil
}

// ListByStory returns collaborators in join order.
func (r *pgCollaboratorRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]models.StoryCollaborator, error) {
	var collabs []models.StoryCollaborator
	query := `SELECT ` + collaboratorColumns + ` FROM story_collaborators
		WHERE story_id = $1 ORDER BY created_at ASC`
	if err := pgxscan.Select(ctx, r.db, &collabs, query, storyID); err != nil {
		r.logger.Error("Failed to list collaborators", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	return collabs, nil
}

// UpdateRole changes a collaborator's role. The owner role is protected at the
// service layer; the WHERE clause here is the last line of defense.
func (r *pgCollaboratorRepository) UpdateRole(ctx context.Context, storyID, userID uuid.UUID, role models.CollaboratorRole) error {
	tag, err := r.db.Exec(ctx, `UPDATE story_collaborators SET role = $3, updated_at = now()
		WHERE story_id = $1 AND user_id = $2 AND role <> 'owner'`, storyID, userID, role)
	if err != nil {
		r.logger.Error("Failed to update collaborator role", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to update collaborator role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotCollaborator
	}
	return nil
}

// AcceptInvitation marks the invitation as accepted.
func (r *pgCollaboratorRepository) AcceptInvitation(ctx context.Context, storyID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE story_collaborators SET invitation_accepted = TRUE, updated_at = now()
		WHERE story_id = $1 AND user_id = $2`, storyID, userID)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotCollaborator
	}
	return nil
}

// Remove deletes a collaborator. The owner row never matches the WHERE clause.
func (r *pgCollaboratorRepository) Remove(ctx context.Context, storyID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM story_collaborators
		WHERE story_id = $1 AND user_id = $2 AND role <> 'owner'`, storyID, userID)
	if err != nil {
		r.logger.Error("Failed to remove collaborator", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotCollaborator
	}
	return nil
}

// IncrementContributionTx bumps the contribution counter within the append transaction.
func (r *pgCollaboratorRepository) IncrementContributionTx(ctx context.Context, tx pgx.Tx, storyID, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE story_collaborators SET contribution_count = contribution_count + 1, updated_at = now()
		WHERE story_id = $1 AND user_id = $2`, storyID, userID)
	if err != nil {
		return fmt.Errorf("failed to increment contribution count: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"wove-server/internal/interfaces"
	"wove-server/internal/models"
)

// Compile-time check to ensure pgUserRepository implements UserRepository
var _ interfaces.UserRepository = (*pgUserRepository)(nil)

type pgUserRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgUserRepository creates a new PostgreSQL-backed UserRepository.
func NewPgUserRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

const userColumns = `id, username, email, password_hash, display_name, roles, current_age_tier, verified_age_tier, is_banned, created_at, updated_at`

// Create inserts a new user. Unique violations on username and email map to
// models.ErrUserAlreadyExists and models.ErrEmailAlreadyExists respectively.
func (r *pgUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (username, email, password_hash, display_name, roles, current_age_tier, verified_age_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.DisplayName,
		user.Roles, user.CurrentAgeTier, user.VerifiedAgeTier,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return models.ErrUserAlreadyExists
			case "users_email_key":
				return models.ErrEmailAlreadyExists
			}
			return models.ErrUserAlreadyExists
		}
		r.logger.Error("Failed to create user", zap.Error(err), zap.String("username", user.Username))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *pgUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *pgUserRepository) getBy(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.Roles, &user.CurrentAgeTier, &user.VerifiedAgeTier, &user.IsBanned,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetBanned flips the ban flag on a user account.
func (r *pgUserRepository) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET is_banned = $2, updated_at = now() WHERE id = $1`, id, banned)
	if err != nil {
		r.logger.Error("Failed to set ban flag", zap.Error(err), zap.String("userID", id.String()))
		return fmt.Errorf("failed to set ban flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateVerifiedAgeTier raises the verified tier after an approved request.
func (r *pgUserRepository) UpdateVerifiedAgeTier(ctx context.Context, id uuid.UUID, tier models.AgeTier) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET verified_age_tier = $2, updated_at = now() WHERE id = $1`, id, tier)
	if err != nil {
		r.logger.Error("Failed to update verified age tier", zap.Error(err), zap.String("userID", id.String()))
		return fmt.Errorf("failed to update verified age tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

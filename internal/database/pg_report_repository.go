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

// Compile-time check to ensure pgReportRepository implements ReportRepository
var _ interfaces.ReportRepository = (*pgReportRepository)(nil)

type pgReportRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgReportRepository creates a new PostgreSQL-backed ReportRepository.
func NewPgReportRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ReportRepository {
	return &pgReportRepository{
		db:     db,
		logger: logger.Named("PgReportRepo"),
	}
}

const reportColumns = `id, reporter_id, story_id, segment_id, reason, details, status, reviewer_id, resolution, created_at, updated_at`

func (r *pgReportRepository) Create(ctx context.Context, report *models.ContentReport) error {
	query := `INSERT INTO content_reports (reporter_id, story_id, segment_id, reason, details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		report.ReporterID, report.StoryID, report.SegmentID, report.Reason, report.Details, report.Status,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create content report", zap.Error(err), zap.String("reporterID", report.ReporterID.String()))
		return fmt.Errorf("failed to create content report: %w", err)
	}
	return nil
}

func (r *pgReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ContentReport, error) {
	report := &models.ContentReport{}
	err := r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM content_reports WHERE id = $1`, id).Scan(
		&report.ID, &report.ReporterID, &report.StoryID, &report.SegmentID,
		&report.Reason, &report.Details, &report.Status, &report.ReviewerID,
		&report.Resolution, &report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrReportNotFound
		}
		r.logger.Error("Failed to get content report", zap.Error(err), zap.String("reportID", id.String()))
		return nil, fmt.Errorf("failed to get content report: %w", err)
	}
	return report, nil
}

func (r *pgReportRepository) ListByStatus(ctx context.Context, status models.ReportStatus, limit, offset int) ([]models.ContentReport, error) {
	var reports []models.ContentReport
	query := `SELECT ` + reportColumns + ` FROM content_reports
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	if err := pgxscan.Select(ctx, r.db, &reports, query, status, limit, offset); err != nil {
		r.logger.Error("Failed to list content reports", zap.Error(err), zap.String("status", string(status)))
		return nil, fmt.Errorf("failed to list content reports: %w", err)
	}
	return reports, nil
}

// UpdateReview records a moderator decision. Status transition validity is
// checked in the service layer under GetByID; here we only persist.
func (r *pgReportRepository) UpdateReview(ctx context.Context, id uuid.UUID, status models.ReportStatus, reviewerID uuid.UUID, resolution *string) error {
	query := `UPDATE content_reports SET
			status = $2, reviewer_id = $3, resolution = COALESCE($4, resolution), updated_at = now()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, reviewerID, resolution)
	if err != nil {
		r.logger.Error("Failed to update content report", zap.Error(err), zap.String("reportID", id.String()))
		return fmt.Errorf("failed to update content report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrReportNotFound
	}
	return nil
}

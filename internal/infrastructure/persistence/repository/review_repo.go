package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ReviewRepository implements port.ReviewRepository
type ReviewRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sql.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the live review of the annotation, overwriting an earlier decision in place
func (r *ReviewRepository) Upsert(ctx context.Context, review *entity.Review) error {
	query := `
		INSERT INTO reviews (annotation_id, reviewer_id, decision, comment, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(annotation_id) DO UPDATE SET
			reviewer_id = excluded.reviewer_id,
			decision = excluded.decision,
			comment = excluded.comment,
			created_at = excluded.created_at
		RETURNING id
	`
	ts := now()

	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		review.AnnotationID,
		review.ReviewerID,
		review.Decision,
		nullString(review.Comment),
		ts,
	).Scan(&review.ID)
	if err != nil {
		r.logger.Error("Failed to upsert review",
			zap.Int64("annotation_id", review.AnnotationID),
			zap.Int64("reviewer_id", review.ReviewerID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert review: %w", err)
	}

	review.CreatedAt = ts
	return nil
}

// GetByAnnotationID retrieves the live review of an annotation
func (r *ReviewRepository) GetByAnnotationID(ctx context.Context, annotationID int64) (*entity.Review, error) {
	query := `
		SELECT id, annotation_id, reviewer_id, decision, comment, created_at
		FROM reviews
		WHERE annotation_id = ?
	`

	var review entity.Review
	var comment sql.NullString
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, annotationID).Scan(
		&review.ID,
		&review.AnnotationID,
		&review.ReviewerID,
		&review.Decision,
		&comment,
		&review.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get review by annotation ID",
			zap.Int64("annotation_id", annotationID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	review.Comment = comment.String
	return &review, nil
}

var _ port.ReviewRepository = (*ReviewRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/workflow"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const annotationColumns = `id, task_id, annotator_id, label, confidence, elapsed_seconds, created_at, updated_at`

// AnnotationRepository implements port.AnnotationRepository
type AnnotationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnnotationRepository creates a new annotation repository
func NewAnnotationRepository(db *sql.DB, logger *zap.Logger) *AnnotationRepository {
	return &AnnotationRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the live annotation of the task. An existing row keeps its ID and creation time
// and takes over the new annotator, label, confidence and elapsed time.
func (r *AnnotationRepository) Upsert(ctx context.Context, annotation *entity.Annotation) error {
	query := `
		INSERT INTO annotations (task_id, annotator_id, label, confidence, elapsed_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			annotator_id = excluded.annotator_id,
			label = excluded.label,
			confidence = excluded.confidence,
			elapsed_seconds = excluded.elapsed_seconds,
			updated_at = excluded.updated_at
		RETURNING id
	`
	ts := now()
	exec := sqlite.ExecutorFrom(ctx, r.db)

	err := exec.QueryRowContext(ctx, query,
		annotation.TaskID,
		annotation.AnnotatorID,
		annotation.Label,
		annotation.Confidence,
		annotation.ElapsedSeconds,
		ts,
		ts,
	).Scan(&annotation.ID)
	if err != nil {
		r.logger.Error("Failed to upsert annotation",
			zap.Int64("task_id", annotation.TaskID),
			zap.Int64("annotator_id", annotation.AnnotatorID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert annotation: %w", err)
	}

	err = exec.QueryRowContext(ctx, `SELECT created_at FROM annotations WHERE id = ?`, annotation.ID).
		Scan(&annotation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to read annotation timestamps: %w", err)
	}
	annotation.UpdatedAt = ts

	return nil
}

// GetByID retrieves an annotation by its ID
func (r *AnnotationRepository) GetByID(ctx context.Context, id int64) (*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE id = ?`

	annotation, err := scanAnnotation(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get annotation by ID",
			zap.Int64("annotation_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	return annotation, nil
}

// GetByTaskID retrieves the live annotation of a task
func (r *AnnotationRepository) GetByTaskID(ctx context.Context, taskID int64) (*entity.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE task_id = ?`

	annotation, err := scanAnnotation(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get annotation by task ID",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	return annotation, nil
}

// CountByTaskID returns the number of annotation rows of a task
func (r *AnnotationRepository) CountByTaskID(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations WHERE task_id = ?`, taskID).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return n, nil
}

// ListForReview lists annotations joined with their task, annotator and live review.
//
// pending shows annotations whose task is waiting in review, including resubmissions that still
// carry the earlier review row. approved and rejected show decided annotations by their live decision.
func (r *AnnotationRepository) ListForReview(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error) {
	from := `
		FROM annotations a
		JOIN tasks t ON t.id = a.task_id
		JOIN users au ON au.id = a.annotator_id
		LEFT JOIN reviews rv ON rv.annotation_id = a.id
		LEFT JOIN users ru ON ru.id = rv.reviewer_id
	`

	var conds []string
	var args []interface{}
	switch status {
	case entity.QueuePending:
		conds = append(conds, "t.status = ?")
		args = append(args, workflow.StateReviewing)
	case entity.QueueApproved, entity.QueueRejected:
		conds = append(conds, "rv.decision = ?", "t.status <> ?")
		args = append(args, string(status), workflow.StateReviewing)
	case entity.QueueAll:
		conds = append(conds, "(t.status = ? OR rv.id IS NOT NULL)")
		args = append(args, workflow.StateReviewing)
	default:
		return nil, 0, fmt.Errorf("unknown review queue status %q", status)
	}

	where := whereClause(conds)
	exec := sqlite.ExecutorFrom(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count review queue",
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count review queue: %w", err)
	}

	limit, limitArgs := pageClause(page)
	query := `
		SELECT a.id, a.task_id, a.annotator_id, a.label, a.confidence, a.elapsed_seconds, a.created_at, a.updated_at,
			t.image_path, t.original_filename, au.username,
			rv.id, rv.reviewer_id, rv.decision, rv.comment, rv.created_at, ru.username
	` + from + where + ` ORDER BY a.updated_at DESC, a.id DESC` + limit

	rows, err := exec.QueryContext(ctx, query, append(args, limitArgs...)...)
	if err != nil {
		r.logger.Error("Failed to list review queue",
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer rows.Close()

	var items []*entity.ReviewQueueItem
	for rows.Next() {
		var a entity.Annotation
		var item entity.ReviewQueueItem
		var originalFilename sql.NullString
		var reviewID, reviewerID sql.NullInt64
		var decision, comment, reviewerName sql.NullString
		var reviewedAt sql.NullTime

		err := rows.Scan(
			&a.ID, &a.TaskID, &a.AnnotatorID, &a.Label, &a.Confidence, &a.ElapsedSeconds, &a.CreatedAt, &a.UpdatedAt,
			&item.ImagePath, &originalFilename, &item.AnnotatorName,
			&reviewID, &reviewerID, &decision, &comment, &reviewedAt, &reviewerName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review queue item: %w", err)
		}

		item.Annotation = &a
		item.TaskID = a.TaskID
		item.OriginalFilename = originalFilename.String
		if reviewID.Valid {
			item.Review = &entity.Review{
				ID:           reviewID.Int64,
				AnnotationID: a.ID,
				ReviewerID:   reviewerID.Int64,
				Decision:     entity.Decision(decision.String),
				Comment:      comment.String,
				CreatedAt:    reviewedAt.Time,
			}
			item.ReviewerName = reviewerName.String
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate review queue: %w", err)
	}

	return items, total, nil
}

func scanAnnotation(row scanner) (*entity.Annotation, error) {
	var a entity.Annotation
	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.AnnotatorID,
		&a.Label,
		&a.Confidence,
		&a.ElapsedSeconds,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ port.AnnotationRepository = (*AnnotationRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const completedColumns = `id, task_id, image_path, original_filename, label, annotator_id, reviewer_id, elapsed_seconds, completed_at`

// CompletedRepository implements port.CompletedRepository over the append-only completed_annotations table
type CompletedRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompletedRepository creates a new completed archive repository
func NewCompletedRepository(db *sql.DB, logger *zap.Logger) *CompletedRepository {
	return &CompletedRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts an archive entry; the UNIQUE task_id constraint refuses a second one
func (r *CompletedRepository) Append(ctx context.Context, record *entity.CompletedRecord) error {
	query := `
		INSERT INTO completed_annotations (
			task_id, image_path, original_filename, label,
			annotator_id, reviewer_id, elapsed_seconds, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	ts := now()

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.TaskID,
		record.ImagePath,
		nullString(record.OriginalFilename),
		record.Label,
		record.AnnotatorID,
		record.ReviewerID,
		record.ElapsedSeconds,
		ts,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.Conflict("task %d is already archived", record.TaskID)
		}
		r.logger.Error("Failed to append completed record",
			zap.Int64("task_id", record.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to append completed record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	record.CompletedAt = ts
	return nil
}

// GetByTaskID retrieves the archive entry of a task
func (r *CompletedRepository) GetByTaskID(ctx context.Context, taskID int64) (*entity.CompletedRecord, error) {
	query := `SELECT ` + completedColumns + ` FROM completed_annotations WHERE task_id = ?`

	record, err := scanCompleted(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get completed record",
			zap.Int64("task_id", taskID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get completed record: %w", err)
	}

	return record, nil
}

// List lists archive entries newest first with the total count
func (r *CompletedRepository) List(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error) {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_annotations`).Scan(&total); err != nil {
		r.logger.Error("Failed to count completed records", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count completed records: %w", err)
	}

	limit, args := pageClause(page)
	query := `SELECT ` + completedColumns + ` FROM completed_annotations ORDER BY completed_at DESC, id DESC` + limit

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list completed records", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list completed records: %w", err)
	}
	defer rows.Close()

	var records []*entity.CompletedRecord
	for rows.Next() {
		record, err := scanCompleted(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan completed record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate completed records: %w", err)
	}

	return records, total, nil
}

// CountByTaskID returns the number of archive entries of a task
func (r *CompletedRepository) CountByTaskID(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := sqlite.ExecutorFrom(ctx, r.db).
		QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_annotations WHERE task_id = ?`, taskID).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed records: %w", err)
	}
	return n, nil
}

func scanCompleted(row scanner) (*entity.CompletedRecord, error) {
	var c entity.CompletedRecord
	var originalFilename sql.NullString
	err := row.Scan(
		&c.ID,
		&c.TaskID,
		&c.ImagePath,
		&originalFilename,
		&c.Label,
		&c.AnnotatorID,
		&c.ReviewerID,
		&c.ElapsedSeconds,
		&c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	c.OriginalFilename = originalFilename.String
	return &c, nil
}

var _ port.CompletedRepository = (*CompletedRepository)(nil)

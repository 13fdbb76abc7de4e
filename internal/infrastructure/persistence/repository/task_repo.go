package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/workflow"
	"github.com/garyjia/image-annotation/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const taskColumns = `id, image_path, original_filename, status, created_by, assigned_to, version, created_at, updated_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new task in the pending state
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	query := `
		INSERT INTO tasks (image_path, original_filename, status, created_by, assigned_to, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`

	if task.Status == "" {
		task.Status = workflow.StatePending
	}
	ts := now()

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		task.ImagePath,
		nullString(task.OriginalFilename),
		task.Status,
		task.CreatedBy,
		nullInt64(task.AssignedTo),
		ts,
		ts,
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("image_path", task.ImagePath),
			zap.Int64("created_by", task.CreatedBy),
			zap.Error(err))
		if sqlite.IsForeignKeyViolation(err) {
			return apperr.Invalid("creator %d does not exist", task.CreatedBy)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	task.Version = 1
	task.CreatedAt = ts
	task.UpdatedAt = ts
	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID",
			zap.Int64("task_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// CompareAndSetState writes status and assignee if nobody changed the task since expectedVersion was read
func (r *TaskRepository) CompareAndSetState(ctx context.Context, id, expectedVersion int64, status workflow.State, assignedTo *int64) error {
	query := `
		UPDATE tasks
		SET status = ?, assigned_to = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		status,
		nullInt64(assignedTo),
		now(),
		id,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update task state",
			zap.Int64("task_id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update task state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.Conflict("task %d changed concurrently", id)
	}

	return nil
}

// Delete removes a task. The live annotation and review cascade.
func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		if sqlite.IsForeignKeyViolation(err) {
			return apperr.Conflict("task %d is referenced by the completed archive", id)
		}
		r.logger.Error("Failed to delete task",
			zap.Int64("task_id", id),
			zap.Error(err))
		return fmt.Errorf("failed to delete task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("task %d", id)
	}

	return nil
}

// ListVisible lists tasks newest first under the visibility scope, with the total match count
func (r *TaskRepository) ListVisible(ctx context.Context, scope port.TaskScope, filter entity.TaskFilter) ([]*entity.Task, int, error) {
	var conds []string
	var args []interface{}

	if !scope.All {
		if scope.AnnotatorID != nil {
			conds = append(conds, "(assigned_to = ? OR (assigned_to IS NULL AND status = ?) OR status = ?)")
			args = append(args, *scope.AnnotatorID, workflow.StatePending, workflow.StateRejected)
		}
		if len(scope.States) > 0 {
			conds = append(conds, "status IN ("+placeholders(len(scope.States))+")")
			for _, s := range scope.States {
				args = append(args, s)
			}
		}
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}

	where := whereClause(conds)
	exec := sqlite.ExecutorFrom(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count tasks", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	limit, limitArgs := pageClause(filter.Page)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC, id DESC` + limit

	rows, err := exec.QueryContext(ctx, query, append(args, limitArgs...)...)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, total, nil
}

func scanTask(row scanner) (*entity.Task, error) {
	var task entity.Task
	var originalFilename sql.NullString
	var assignedTo sql.NullInt64

	err := row.Scan(
		&task.ID,
		&task.ImagePath,
		&originalFilename,
		&task.Status,
		&task.CreatedBy,
		&assignedTo,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.OriginalFilename = originalFilename.String
	task.AssignedTo = int64Ptr(assignedTo)
	return &task, nil
}

var _ port.TaskRepository = (*TaskRepository)(nil)

package port

import (
	"context"

	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/workflow"
)

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	// Create inserts a pending task and fills its ID and version
	Create(ctx context.Context, task *entity.Task) error

	// GetByID retrieves a task by its ID, nil when missing
	GetByID(ctx context.Context, id int64) (*entity.Task, error)

	// CompareAndSetState writes status and assignee only if the stored version still equals
	// expectedVersion. A lost race returns an apperr.ErrConflict error.
	CompareAndSetState(ctx context.Context, id, expectedVersion int64, status workflow.State, assignedTo *int64) error

	// Delete removes a task; annotation and review rows cascade
	Delete(ctx context.Context, id int64) error

	// ListVisible lists tasks visible under the given scope and returns the total match count
	ListVisible(ctx context.Context, scope TaskScope, filter entity.TaskFilter) ([]*entity.Task, int, error)
}

// TaskScope is the role-derived visibility rule applied to task listings
type TaskScope struct {
	// All disables every visibility restriction
	All bool

	// AnnotatorID shows tasks held by the annotator, unassigned pending tasks and rejected tasks
	AnnotatorID *int64

	// States limits the listing to the given states when not empty
	States []workflow.State
}

// AnnotationRepository defines persistence operations for the live Annotation of a task
type AnnotationRepository interface {
	// Upsert inserts the task's annotation or overwrites the existing row in place
	Upsert(ctx context.Context, annotation *entity.Annotation) error

	// GetByID retrieves an annotation by its ID, nil when missing
	GetByID(ctx context.Context, id int64) (*entity.Annotation, error)

	// GetByTaskID retrieves the live annotation of a task, nil when missing
	GetByTaskID(ctx context.Context, taskID int64) (*entity.Annotation, error)

	// CountByTaskID returns how many annotation rows exist for a task
	CountByTaskID(ctx context.Context, taskID int64) (int, error)

	// ListForReview lists annotations for the review queue with the total match count
	ListForReview(ctx context.Context, status entity.ReviewQueueStatus, page entity.Page) ([]*entity.ReviewQueueItem, int, error)
}

// ReviewRepository defines persistence operations for the live Review of an annotation
type ReviewRepository interface {
	// Upsert inserts the annotation's review or overwrites the existing row in place
	Upsert(ctx context.Context, review *entity.Review) error

	// GetByAnnotationID retrieves the live review of an annotation, nil when missing
	GetByAnnotationID(ctx context.Context, annotationID int64) (*entity.Review, error)
}

// CompletedRepository defines the append-only Completed Archive.
// There is deliberately no update or delete operation.
type CompletedRepository interface {
	// Append inserts an archive entry. A second entry for the same task returns apperr.ErrConflict.
	Append(ctx context.Context, record *entity.CompletedRecord) error

	// GetByTaskID retrieves the archive entry of a task, nil when missing
	GetByTaskID(ctx context.Context, taskID int64) (*entity.CompletedRecord, error)

	// List lists archive entries newest first with the total count
	List(ctx context.Context, page entity.Page) ([]*entity.CompletedRecord, int, error)

	// CountByTaskID returns how many archive entries exist for a task
	CountByTaskID(ctx context.Context, taskID int64) (int, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context, page entity.Page) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn in one transaction; any error rolls back every write made through ctx
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

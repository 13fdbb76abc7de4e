package workflow

import (
	"context"
	"time"

	"github.com/garyjia/image-annotation/internal/domain/entity"
)

// Engine is the lifecycle engine. It is the only writer of task status and assignee;
// every mutating operation runs as one transaction and either fully applies or leaves no trace.
type Engine interface {
	// CreateTasks creates one pending task per image reference
	CreateTasks(ctx context.Context, actor Actor, images []entity.ImageRef) ([]*entity.Task, error)

	// Claim hands an unassigned pending task, or a rejected task, to the actor
	Claim(ctx context.Context, actor Actor, taskID int64) (*entity.Task, error)

	// SubmitAnnotation writes the task's live annotation and moves the task into review
	SubmitAnnotation(ctx context.Context, actor Actor, input SubmitInput) (*SubmitOutcome, error)

	// DecideReview records a decision on an annotation whose task is in review
	DecideReview(ctx context.Context, actor Actor, input ReviewInput) (*ReviewOutcome, error)

	// BatchDecideReview applies each decision in its own transaction and skips the ones whose
	// preconditions fail. A storage failure stops the batch and is returned with the partial result.
	BatchDecideReview(ctx context.Context, actor Actor, inputs []ReviewInput) (*BatchResult, error)

	// ListAssignable lists the tasks the actor's role may see
	ListAssignable(ctx context.Context, actor Actor, filter entity.TaskFilter) (*TaskPage, error)

	// GetTask returns a task with its live annotation and review
	GetTask(ctx context.Context, actor Actor, taskID int64) (*entity.TaskDetail, error)

	// AssignTask is the admin override that hands a pending task to a chosen user
	AssignTask(ctx context.Context, actor Actor, taskID, assigneeID int64) (*entity.Task, error)

	// DeleteTask removes a task that has not been archived
	DeleteTask(ctx context.Context, actor Actor, taskID int64) error
}

// Actor is the caller of an engine operation
type Actor struct {
	UserID int64
	Role   entity.Role
}

// ActorOf builds the actor for a resolved user
func ActorOf(u *entity.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// SubmitInput is one annotation submission. Nil Confidence means 1.0 and nil ElapsedSeconds means 0.
type SubmitInput struct {
	TaskID         int64
	Label          entity.Label
	Confidence     *float64
	ElapsedSeconds *int64
}

// SubmitOutcome is the state after a successful submission
type SubmitOutcome struct {
	Task       *entity.Task       `json:"task"`
	Annotation *entity.Annotation `json:"annotation"`
}

// ReviewInput is one review decision
type ReviewInput struct {
	AnnotationID int64           `json:"annotation_id"`
	Decision     entity.Decision `json:"decision"`
	Comment      string          `json:"comment,omitempty"`
}

// ReviewOutcome is the state after a successful decision. Completed is set only on approval.
type ReviewOutcome struct {
	Task      *entity.Task            `json:"task"`
	Review    *entity.Review          `json:"review"`
	Completed *entity.CompletedRecord `json:"completed,omitempty"`
}

// BatchResult reports how a batch of decisions went
type BatchResult struct {
	Applied int         `json:"applied"`
	Skipped []BatchSkip `json:"skipped,omitempty"`
}

// BatchSkip is a batch entry that was not applied
type BatchSkip struct {
	AnnotationID int64  `json:"annotation_id"`
	Reason       string `json:"reason"`
	Kind         string `json:"kind"`
}

// TaskPage is one page of a task listing
type TaskPage struct {
	Tasks  []*entity.Task `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// Config tunes the engine
type Config struct {
	// Labels is the closed label set accepted by SubmitAnnotation
	Labels entity.LabelSet

	// OperationTimeout bounds the store time of a single operation
	OperationTimeout time.Duration

	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		Labels:           entity.DefaultLabels,
		OperationTimeout: 5 * time.Second,
		DefaultPageSize:  20,
		MaxPageSize:      100,
	}
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

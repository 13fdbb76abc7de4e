package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/garyjia/image-annotation/internal/application/dispatcher"
	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/event"
	"github.com/garyjia/image-annotation/internal/domain/policy"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
	"github.com/garyjia/image-annotation/pkg/utils"
)

// Repositories groups the stores the engine writes through
type Repositories struct {
	Tasks       port.TaskRepository
	Annotations port.AnnotationRepository
	Reviews     port.ReviewRepository
	Completed   port.CompletedRepository
	Users       port.UserRepository
}

type engineImpl struct {
	repos      Repositories
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	cfg        Config
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives lifecycle events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithConfig overrides DefaultConfig. Zero fields keep their defaults.
func WithConfig(cfg Config) EngineOption {
	return func(e *engineImpl) {
		if len(cfg.Labels) > 0 {
			e.cfg.Labels = cfg.Labels
		}
		if cfg.OperationTimeout > 0 {
			e.cfg.OperationTimeout = cfg.OperationTimeout
		}
		if cfg.DefaultPageSize > 0 {
			e.cfg.DefaultPageSize = cfg.DefaultPageSize
		}
		if cfg.MaxPageSize > 0 {
			e.cfg.MaxPageSize = cfg.MaxPageSize
		}
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(repos Repositories, txManager port.TransactionManager, opts ...EngineOption) Engine {
	e := &engineImpl{
		repos:     repos,
		txManager: txManager,
		logger:    nopLogger{},
		cfg:       DefaultConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// mutate runs fn in one bounded transaction and publishes the events it produced once committed
func (e *engineImpl) mutate(ctx context.Context, op string, fn func(ctx context.Context, emit func(*event.Event)) error) error {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()

	var pending []*event.Event
	err := e.txManager.WithTransaction(opCtx, func(txCtx context.Context) error {
		pending = pending[:0]
		return fn(txCtx, func(evt *event.Event) { pending = append(pending, evt) })
	})
	if err != nil {
		err = classify(err)
		if apperr.KindOf(err) == apperr.KindTransient {
			e.logger.Error("Lifecycle operation failed", "operation", op, "error", err)
		}
		return err
	}

	for _, evt := range pending {
		e.logger.Info("Lifecycle transition committed",
			"operation", op,
			"event_type", evt.Type,
			"task_id", evt.TaskID,
			"actor_id", evt.ActorID,
			"from", evt.From,
			"to", evt.To,
		)
	}
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, pending...)
	}

	return nil
}

// read runs fn bounded by the operation timeout outside any transaction
func (e *engineImpl) read(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	defer cancel()
	return classify(fn(opCtx))
}

// classify leaves taxonomy errors alone and reports everything else as a transient storage failure
func classify(err error) error {
	if err == nil || apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Transient(fmt.Errorf("operation timed out: %w", err))
	}
	return apperr.Transient(err)
}

func (e *engineImpl) loadTask(ctx context.Context, taskID int64) (*entity.Task, error) {
	task, err := e.repos.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("task %d", taskID)
	}
	return task, nil
}

// fire validates trigger against the transition table and returns the target state
func fire(ctx context.Context, task *entity.Task, actor Actor, trigger domainwf.Trigger) (domainwf.State, error) {
	machine := domainwf.NewTaskMachine(task.Status, domainwf.TaskFacts{
		Assignee: task.AssignedTo,
		Actor:    actor.UserID,
	})
	to, err := machine.Fire(ctx, trigger)
	if err != nil {
		return task.Status, refuse(trigger, task.ID, task.Status, err)
	}
	return to, nil
}

// transition writes the new state with a compare-and-set on the version read at the start of the operation
func (e *engineImpl) transition(ctx context.Context, task *entity.Task, to domainwf.State, assignee *int64) error {
	if err := e.repos.Tasks.CompareAndSetState(ctx, task.ID, task.Version, to, assignee); err != nil {
		return err
	}
	task.Status = to
	task.AssignedTo = assignee
	task.Version++
	return nil
}

func (e *engineImpl) CreateTasks(ctx context.Context, actor Actor, images []entity.ImageRef) ([]*entity.Task, error) {
	if err := policy.Authorize(actor.Role, policy.OpCreateTask); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, apperr.Invalid("at least one image is required")
	}
	for i, img := range images {
		if err := utils.ValidateImagePath(img.Path); err != nil {
			return nil, apperr.Invalid("image %d: %v", i, err)
		}
	}

	var created []*entity.Task
	err := e.mutate(ctx, "create_tasks", func(ctx context.Context, emit func(*event.Event)) error {
		created = created[:0]
		for _, img := range images {
			task := &entity.Task{
				ImagePath:        img.Path,
				OriginalFilename: img.OriginalFilename,
				Status:           domainwf.StatePending,
				CreatedBy:        actor.UserID,
			}
			if err := e.repos.Tasks.Create(ctx, task); err != nil {
				return err
			}
			created = append(created, task)
			emit(event.NewEvent(event.TypeTaskCreated, task.ID, actor.UserID, map[string]interface{}{
				"image_path": task.ImagePath,
			}).WithTransition("", domainwf.StatePending))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (e *engineImpl) Claim(ctx context.Context, actor Actor, taskID int64) (*entity.Task, error) {
	if err := policy.Authorize(actor.Role, policy.OpClaimTask); err != nil {
		return nil, err
	}

	var task *entity.Task
	err := e.mutate(ctx, "claim", func(ctx context.Context, emit func(*event.Event)) error {
		var err error
		if task, err = e.loadTask(ctx, taskID); err != nil {
			return err
		}

		from := task.Status
		to, err := fire(ctx, task, actor, domainwf.TriggerClaim)
		if err != nil {
			return err
		}

		assignee := actor.UserID
		if err := e.transition(ctx, task, to, &assignee); err != nil {
			return err
		}

		emit(event.NewEvent(event.TypeTaskClaimed, task.ID, actor.UserID, nil).WithTransition(from, to))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (e *engineImpl) validateSubmit(input SubmitInput) (confidence float64, elapsed int64, err error) {
	if !e.cfg.Labels.Contains(input.Label) {
		return 0, 0, apperr.Invalid("label %q is not one of %v", input.Label, e.cfg.Labels)
	}

	confidence = 1.0
	if input.Confidence != nil {
		confidence = *input.Confidence
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return 0, 0, apperr.Invalid("confidence %v must be within [0, 1]", confidence)
	}

	if input.ElapsedSeconds != nil {
		elapsed = *input.ElapsedSeconds
	}
	if elapsed < 0 {
		return 0, 0, apperr.Invalid("elapsed seconds %d must not be negative", elapsed)
	}

	return confidence, elapsed, nil
}

func (e *engineImpl) SubmitAnnotation(ctx context.Context, actor Actor, input SubmitInput) (*SubmitOutcome, error) {
	if err := policy.Authorize(actor.Role, policy.OpSubmitAnnotation); err != nil {
		return nil, err
	}
	confidence, elapsed, err := e.validateSubmit(input)
	if err != nil {
		return nil, err
	}

	var outcome SubmitOutcome
	err = e.mutate(ctx, "submit_annotation", func(ctx context.Context, emit func(*event.Event)) error {
		task, err := e.loadTask(ctx, input.TaskID)
		if err != nil {
			return err
		}

		from := task.Status
		to, err := fire(ctx, task, actor, domainwf.TriggerSubmit)
		if err != nil {
			return err
		}

		assignee := actor.UserID
		if err := e.transition(ctx, task, to, &assignee); err != nil {
			return err
		}

		annotation := &entity.Annotation{
			TaskID:         task.ID,
			AnnotatorID:    actor.UserID,
			Label:          input.Label,
			Confidence:     confidence,
			ElapsedSeconds: elapsed,
		}
		if err := e.repos.Annotations.Upsert(ctx, annotation); err != nil {
			return err
		}

		outcome = SubmitOutcome{Task: task, Annotation: annotation}
		emit(event.NewEvent(event.TypeAnnotationSubmitted, task.ID, actor.UserID, map[string]interface{}{
			"annotation_id": annotation.ID,
			"label":         annotation.Label.String(),
		}).WithTransition(from, to))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

func (e *engineImpl) DecideReview(ctx context.Context, actor Actor, input ReviewInput) (*ReviewOutcome, error) {
	if err := policy.Authorize(actor.Role, policy.OpDecideReview); err != nil {
		return nil, err
	}
	return e.decide(ctx, actor, input)
}

func (e *engineImpl) decide(ctx context.Context, actor Actor, input ReviewInput) (*ReviewOutcome, error) {
	if !input.Decision.IsValid() {
		return nil, apperr.Invalid("decision %q must be approved or rejected", input.Decision)
	}

	trigger, eventType := domainwf.TriggerReject, event.TypeReviewRejected
	if input.Decision == entity.DecisionApproved {
		trigger, eventType = domainwf.TriggerApprove, event.TypeReviewApproved
	}

	var outcome ReviewOutcome
	err := e.mutate(ctx, "decide_review", func(ctx context.Context, emit func(*event.Event)) error {
		annotation, err := e.repos.Annotations.GetByID(ctx, input.AnnotationID)
		if err != nil {
			return err
		}
		if annotation == nil {
			return apperr.NotFound("annotation %d", input.AnnotationID)
		}

		task, err := e.loadTask(ctx, annotation.TaskID)
		if err != nil {
			return err
		}

		from := task.Status
		to, err := fire(ctx, task, actor, trigger)
		if err != nil {
			return err
		}

		review := &entity.Review{
			AnnotationID: annotation.ID,
			ReviewerID:   actor.UserID,
			Decision:     input.Decision,
			Comment:      input.Comment,
		}
		if err := e.repos.Reviews.Upsert(ctx, review); err != nil {
			return err
		}

		// A rejected task keeps its annotator so they can resubmit; an archived one is released.
		assignee := task.AssignedTo
		if to == domainwf.StateCompleted {
			record := &entity.CompletedRecord{
				TaskID:           task.ID,
				ImagePath:        task.ImagePath,
				OriginalFilename: task.OriginalFilename,
				Label:            annotation.Label,
				AnnotatorID:      annotation.AnnotatorID,
				ReviewerID:       actor.UserID,
				ElapsedSeconds:   annotation.ElapsedSeconds,
			}
			if err := e.repos.Completed.Append(ctx, record); err != nil {
				return err
			}
			outcome.Completed = record
			assignee = nil
		}

		if err := e.transition(ctx, task, to, assignee); err != nil {
			return err
		}

		outcome.Task = task
		outcome.Review = review
		emit(event.NewEvent(eventType, task.ID, actor.UserID, map[string]interface{}{
			"annotation_id": annotation.ID,
			"annotator_id":  annotation.AnnotatorID,
			"label":         annotation.Label.String(),
		}).WithTransition(from, to))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

func (e *engineImpl) BatchDecideReview(ctx context.Context, actor Actor, inputs []ReviewInput) (*BatchResult, error) {
	if err := policy.Authorize(actor.Role, policy.OpDecideReview); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.Invalid("batch has no entries")
	}

	result := &BatchResult{}
	for _, input := range inputs {
		_, err := e.decide(ctx, actor, input)
		if err == nil {
			result.Applied++
			continue
		}

		switch kind := apperr.KindOf(err); kind {
		case apperr.KindNotFound, apperr.KindConflict, apperr.KindInvalid:
			result.Skipped = append(result.Skipped, BatchSkip{
				AnnotationID: input.AnnotationID,
				Reason:       err.Error(),
				Kind:         kind.String(),
			})
		default:
			return result, err
		}
	}

	e.logger.Info("Batch review applied",
		"reviewer_id", actor.UserID,
		"applied", result.Applied,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (e *engineImpl) AssignTask(ctx context.Context, actor Actor, taskID, assigneeID int64) (*entity.Task, error) {
	if err := policy.Authorize(actor.Role, policy.OpAssignTask); err != nil {
		return nil, err
	}

	var task *entity.Task
	err := e.mutate(ctx, "assign_task", func(ctx context.Context, emit func(*event.Event)) error {
		var err error
		if task, err = e.loadTask(ctx, taskID); err != nil {
			return err
		}

		assignee, err := e.repos.Users.GetByID(ctx, assigneeID)
		if err != nil {
			return err
		}
		if assignee == nil {
			return apperr.Invalid("assignee %d does not exist", assigneeID)
		}
		if !policy.CanAnnotate(assignee.Role) {
			return apperr.Invalid("user %d with role %s cannot annotate", assigneeID, assignee.Role)
		}

		from := task.Status
		to, err := fire(ctx, task, actor, domainwf.TriggerAssign)
		if err != nil {
			return err
		}

		if err := e.transition(ctx, task, to, &assignee.ID); err != nil {
			return err
		}

		emit(event.NewEvent(event.TypeTaskAssigned, task.ID, actor.UserID, map[string]interface{}{
			"assignee_id": assignee.ID,
		}).WithTransition(from, to))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (e *engineImpl) DeleteTask(ctx context.Context, actor Actor, taskID int64) error {
	if err := policy.Authorize(actor.Role, policy.OpDeleteTask); err != nil {
		return err
	}

	return e.mutate(ctx, "delete_task", func(ctx context.Context, emit func(*event.Event)) error {
		task, err := e.loadTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task.Status.IsTerminal() {
			return apperr.Conflict("task %d is archived and cannot be deleted", taskID)
		}

		if err := e.repos.Tasks.Delete(ctx, taskID); err != nil {
			return err
		}

		emit(event.NewEvent(event.TypeTaskDeleted, taskID, actor.UserID, nil).WithTransition(task.Status, ""))
		return nil
	})
}

var _ Engine = (*engineImpl)(nil)

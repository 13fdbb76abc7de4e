package workflow

import (
	"context"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
	"github.com/garyjia/image-annotation/internal/domain/policy"
	domainwf "github.com/garyjia/image-annotation/internal/domain/workflow"
)

// reviewerStates is what a reviewer's task listing shows: the queue plus decided history
var reviewerStates = []domainwf.State{
	domainwf.StateReviewing,
	domainwf.StateCompleted,
	domainwf.StateRejected,
}

// scopeFor returns the visibility rule of the actor's role
func scopeFor(actor Actor) port.TaskScope {
	switch actor.Role {
	case entity.RoleAdmin:
		return port.TaskScope{All: true}
	case entity.RoleReviewer:
		return port.TaskScope{States: reviewerStates}
	default:
		id := actor.UserID
		return port.TaskScope{AnnotatorID: &id}
	}
}

// visibleTo reports whether the actor may see the task. Annotators see what they hold, what is free
// to claim, rejected work, and anything they annotated last.
func visibleTo(actor Actor, task *entity.Task, annotation *entity.Annotation) bool {
	switch actor.Role {
	case entity.RoleAdmin, entity.RoleReviewer:
		return true
	}

	switch {
	case task.IsAssignedTo(actor.UserID):
		return true
	case task.AssignedTo == nil && task.Status == domainwf.StatePending:
		return true
	case task.Status == domainwf.StateRejected:
		return true
	case annotation != nil && annotation.AnnotatorID == actor.UserID:
		return true
	default:
		return false
	}
}

// clampPage applies the default page size and caps the limit
func (e *engineImpl) clampPage(page entity.Page) entity.Page {
	if page.Limit <= 0 {
		page.Limit = e.cfg.DefaultPageSize
	}
	if page.Limit > e.cfg.MaxPageSize {
		page.Limit = e.cfg.MaxPageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	return page
}

func (e *engineImpl) ListAssignable(ctx context.Context, actor Actor, filter entity.TaskFilter) (*TaskPage, error) {
	if err := policy.Authorize(actor.Role, policy.OpListTasks); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, apperr.Invalid("unknown status %q", *filter.Status)
	}
	filter.Page = e.clampPage(filter.Page)

	var page TaskPage
	err := e.read(ctx, func(ctx context.Context) error {
		tasks, total, err := e.repos.Tasks.ListVisible(ctx, scopeFor(actor), filter)
		if err != nil {
			return err
		}
		if tasks == nil {
			tasks = []*entity.Task{}
		}
		page = TaskPage{Tasks: tasks, Total: total, Limit: filter.Limit, Offset: filter.Offset}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &page, nil
}

func (e *engineImpl) GetTask(ctx context.Context, actor Actor, taskID int64) (*entity.TaskDetail, error) {
	if err := policy.Authorize(actor.Role, policy.OpViewTask); err != nil {
		return nil, err
	}

	var detail entity.TaskDetail
	err := e.read(ctx, func(ctx context.Context) error {
		task, err := e.loadTask(ctx, taskID)
		if err != nil {
			return err
		}

		annotation, err := e.repos.Annotations.GetByTaskID(ctx, taskID)
		if err != nil {
			return err
		}
		if !visibleTo(actor, task, annotation) {
			return apperr.Forbidden("task %d is held by another annotator", taskID)
		}

		detail = entity.TaskDetail{Task: task, Annotation: annotation}
		if annotation != nil {
			if detail.Review, err = e.repos.Reviews.GetByAnnotationID(ctx, annotation.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &detail, nil
}

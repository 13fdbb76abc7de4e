// Package policy is the single role-to-operation authorization gate of the lifecycle.
// It is stateless and independent of how the transport authenticated the caller.
package policy

import (
	"github.com/garyjia/image-annotation/internal/domain/apperr"
	"github.com/garyjia/image-annotation/internal/domain/entity"
)

// Operation names an action guarded by the policy
type Operation string

const (
	OpClaimTask        Operation = "task.claim"
	OpSubmitAnnotation Operation = "annotation.submit"
	OpListTasks        Operation = "task.list"
	OpViewTask         Operation = "task.view"
	OpDecideReview     Operation = "review.decide"
	OpViewReviewQueue  Operation = "review.queue"
	OpViewArchive      Operation = "archive.view"
	OpCreateTask       Operation = "task.create"
	OpDeleteTask       Operation = "task.delete"
	OpAssignTask       Operation = "task.assign"
	OpExportArchive    Operation = "archive.export"
	OpManageUsers      Operation = "user.manage"
)

var (
	anyone    = roles(entity.RoleAnnotator, entity.RoleReviewer, entity.RoleAdmin)
	reviewers = roles(entity.RoleReviewer, entity.RoleAdmin)
	admins    = roles(entity.RoleAdmin)
)

// Reviewers may also annotate; admins may do everything.
var rules = map[Operation]map[entity.Role]bool{
	OpClaimTask:        anyone,
	OpSubmitAnnotation: anyone,
	OpListTasks:        anyone,
	OpViewTask:         anyone,
	OpDecideReview:     reviewers,
	OpViewReviewQueue:  reviewers,
	OpViewArchive:      reviewers,
	OpCreateTask:       admins,
	OpDeleteTask:       admins,
	OpAssignTask:       admins,
	OpExportArchive:    admins,
	OpManageUsers:      admins,
}

func roles(rs ...entity.Role) map[entity.Role]bool {
	set := make(map[entity.Role]bool, len(rs))
	for _, r := range rs {
		set[r] = true
	}
	return set
}

// Allow reports whether the role may perform the operation. Unknown operations are denied.
func Allow(role entity.Role, op Operation) bool {
	return rules[op][role]
}

// Authorize returns an apperr.ErrForbidden error when the role may not perform the operation
func Authorize(role entity.Role, op Operation) error {
	if !Allow(role, op) {
		return apperr.Forbidden("role %q may not perform %s", role, op)
	}
	return nil
}

// CanAnnotate reports whether a user with the role may hold a task
func CanAnnotate(role entity.Role) bool {
	return Allow(role, OpSubmitAnnotation)
}

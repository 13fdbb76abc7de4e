package entity

import (
	"time"

	"github.com/garyjia/image-annotation/internal/domain/workflow"
)

// ImageRef points at an uploaded image. Storage of the bytes is handled by the upload collaborator.
type ImageRef struct {
	Path             string `json:"image_path"`
	OriginalFilename string `json:"original_filename"`
}

// Task is one image awaiting a label.
//
// AssignedTo is set while the task is annotating or reviewing and is kept across a rejection
// so the last annotator can resubmit. Only the lifecycle engine writes Status and AssignedTo.
type Task struct {
	ID               int64          `json:"id"`
	ImagePath        string         `json:"image_path"`
	OriginalFilename string         `json:"original_filename"`
	Status           workflow.State `json:"status"`
	CreatedBy        int64          `json:"created_by"`
	AssignedTo       *int64         `json:"assigned_to,omitempty"`

	// Version increments on every write and backs compare-and-set updates
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAssignedTo reports whether the task is currently held by the user
func (t *Task) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TaskDetail is a task together with its live annotation and the live review of that annotation
type TaskDetail struct {
	Task       *Task       `json:"task"`
	Annotation *Annotation `json:"annotation,omitempty"`
	Review     *Review     `json:"review,omitempty"`
}

// TaskFilter narrows task listings
type TaskFilter struct {
	// Status restricts the listing to one state when set
	Status *workflow.State
	Page
}

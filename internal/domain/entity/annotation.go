package entity

import "time"

// Label is the class an annotator attaches to an image
type Label string

// String returns the string representation of the label
func (l Label) String() string {
	return string(l)
}

// LabelSet is the closed set of labels accepted for a deployment
type LabelSet []Label

// Contains reports whether the label belongs to the set
func (s LabelSet) Contains(l Label) bool {
	for _, candidate := range s {
		if candidate == l {
			return true
		}
	}
	return false
}

// DefaultLabels is the two-class label set used when none is configured
var DefaultLabels = LabelSet{"cat", "dog"}

// Annotation is the live label of a task. Resubmission overwrites the row.
type Annotation struct {
	ID             int64     `json:"id"`
	TaskID         int64     `json:"task_id"`
	AnnotatorID    int64     `json:"annotator_id"`
	Label          Label     `json:"label"`
	Confidence     float64   `json:"confidence"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

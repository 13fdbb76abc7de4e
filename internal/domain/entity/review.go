package entity

import "time"

// Decision is a reviewer's verdict on an annotation
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// IsValid returns true if the decision is approved or rejected
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}

// Review is the live decision on an annotation. A later decision overwrites the row.
type Review struct {
	ID           int64     `json:"id"`
	AnnotationID int64     `json:"annotation_id"`
	ReviewerID   int64     `json:"reviewer_id"`
	Decision     Decision  `json:"decision"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReviewQueueStatus selects which annotations the review queue shows
type ReviewQueueStatus string

const (
	QueuePending  ReviewQueueStatus = "pending"
	QueueApproved ReviewQueueStatus = "approved"
	QueueRejected ReviewQueueStatus = "rejected"
	QueueAll      ReviewQueueStatus = "all"
)

// IsValid returns true if the queue status is known
func (s ReviewQueueStatus) IsValid() bool {
	switch s {
	case QueuePending, QueueApproved, QueueRejected, QueueAll:
		return true
	default:
		return false
	}
}

// ReviewQueueItem is one annotation as seen by a reviewer
type ReviewQueueItem struct {
	Annotation       *Annotation `json:"annotation"`
	TaskID           int64       `json:"task_id"`
	ImagePath        string      `json:"image_path"`
	OriginalFilename string      `json:"original_filename"`
	AnnotatorName    string      `json:"annotator_username"`
	Review           *Review     `json:"review,omitempty"`
	ReviewerName     string      `json:"reviewer_username,omitempty"`
}

package entity

import "time"

// CompletedRecord is the immutable archive entry written when a task is approved
type CompletedRecord struct {
	ID               int64     `json:"id"`
	TaskID           int64     `json:"task_id"`
	ImagePath        string    `json:"image_path"`
	OriginalFilename string    `json:"original_filename"`
	Label            Label     `json:"label"`
	AnnotatorID      int64     `json:"annotator_id"`
	ReviewerID       int64     `json:"reviewer_id"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Page is an offset window over a listing
type Page struct {
	Limit  int
	Offset int
}

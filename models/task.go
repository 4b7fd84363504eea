package models

import (
	"time"
)

type TaskStatus string

const (
	StatusQueued     TaskStatus = "QUEUED"
	StatusProcessing TaskStatus = "PROCESSING"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusPartial    TaskStatus = "PARTIAL"
	StatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether no further mutation of a task in this status occurs.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	default:
		return false
	}
}

// ImageResult is the outcome for one staged image within a batch.
// Caption/Tags and Error are mutually exclusive.
type ImageResult struct {
	ImagePath string   `json:"image_path"`
	Caption   string   `json:"caption,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type Task struct {
	ID          string        `json:"id"`
	Status      TaskStatus    `json:"status"`
	Total       int           `json:"total"`
	Results     []ImageResult `json:"results"`
	Message     string        `json:"message"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

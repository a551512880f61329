package domain

import "time"

// JobStatus represents the last-known status of a training job as observed
// locally. The execution backend owns the job lifecycle; the local record
// is a cache refreshed only when the user polls.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is one the backend will not move
// past. Failed jobs are not retried automatically; retry is a new submission.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Training backends recorded in the local job index.
const (
	JobBackendLocal = "local"
	JobBackendCloud = "cloud"
)

// TrainingJob tracks one training run. Cloud jobs carry the id assigned by
// the execution backend; local runs get a synthesized id so both modes are
// listed and polled through the same status model.
type TrainingJob struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	ProjectID   string     `gorm:"type:text;not null;index:idx_jobs_project" json:"project_id"`
	Backend     string     `gorm:"type:text;not null" json:"backend"`
	Status      JobStatus  `gorm:"type:text;index:idx_jobs_status;default:submitted" json:"status"`
	DatasetKey  string     `gorm:"type:text" json:"dataset_key,omitempty"`
	LogExcerpt  string     `json:"log_excerpt,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CheckedAt   *time.Time `json:"checked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for TrainingJob.
func (TrainingJob) TableName() string {
	return "training_jobs"
}

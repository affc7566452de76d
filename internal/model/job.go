package model

import "time"

// JobStatus is the lifecycle state carried by a job record.
type JobStatus string

const (
	JobStatusStarted JobStatus = "started"
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusError
}

// JobRecord is one append-only entry in a job's history. A job is never
// updated in place; its current state is derived by folding all of its
// records ordered by CreatedAt.
type JobRecord struct {
	JobID      string            `json:"job_id" dynamodbav:"job_id"`
	CreatedAt  time.Time         `json:"created_at" dynamodbav:"created_at"`
	Status     JobStatus         `json:"status" dynamodbav:"status"`
	SourceURLs []string          `json:"s3_urls,omitempty" dynamodbav:"s3_urls,omitempty"`
	ResultURLs map[string]string `json:"urls,omitempty" dynamodbav:"urls,omitempty"`
	Message    string            `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
}

// NewStartedRecord marks the beginning of a job for the given source objects.
func NewStartedRecord(jobID string, sourceURLs []string, metadata map[string]string) JobRecord {
	return JobRecord{
		JobID:      jobID,
		CreatedAt:  time.Now().UTC(),
		Status:     JobStatusStarted,
		SourceURLs: sourceURLs,
		Metadata:   metadata,
	}
}

// NewSuccessRecord marks a job as completed with presigned result URLs keyed
// by output format.
func NewSuccessRecord(jobID string, resultURLs map[string]string) JobRecord {
	return JobRecord{
		JobID:      jobID,
		CreatedAt:  time.Now().UTC(),
		Status:     JobStatusSuccess,
		ResultURLs: resultURLs,
	}
}

// NewErrorRecord marks a job as failed with a human-readable reason.
func NewErrorRecord(jobID string, message string) JobRecord {
	return JobRecord{
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
		Status:    JobStatusError,
		Message:   message,
	}
}

// JobStatusView is the single coherent state reduced from a job's records:
// the earliest started record supplies Started and Input, the latest
// terminal record supplies Status, Completed and either URLs or Message.
type JobStatusView struct {
	JobID     string            `json:"job_id"`
	Status    JobStatus         `json:"status"`
	Message   string            `json:"message,omitempty"`
	Started   *time.Time        `json:"started,omitempty"`
	Completed *time.Time        `json:"completed,omitempty"`
	Input     string            `json:"input,omitempty"`
	URLs      map[string]string `json:"urls,omitempty"`
}

package model

// CreateJobRequest asks for a new conversion job and a presigned upload URL
// for its source object. A caller tracking its own job ids may supply one;
// otherwise the service assigns it.
type CreateJobRequest struct {
	Filename    string            `json:"filename" validate:"required,max=255"`
	ContentType string            `json:"content_type" validate:"required"`
	JobID       string            `json:"job_id,omitempty" validate:"omitempty,max=64"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CreateJobResponse carries the presigned PUT URL the client uploads the
// source object to, plus the job id to poll with.
type CreateJobResponse struct {
	JobID        string `json:"job_id"`
	Key          string `json:"key"`
	PresignedURL string `json:"presigned_url"`
}

// ObjectCreatedEvent is the notification that a source object landed in the
// input area of the bucket and is ready for conversion. Options are the raw
// conversion options as provided by the caller; they are validated before
// the job is dispatched.
type ObjectCreatedEvent struct {
	Bucket  string         `json:"bucket" validate:"required"`
	Key     string         `json:"key" validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}

// DispatchResponse acknowledges that a conversion task was queued.
type DispatchResponse struct {
	JobID string `json:"job_id"`
	Key   string `json:"key"`
}

// UploadResponse describes where a directly uploaded source object was
// stored and which job tracks its conversion.
type UploadResponse struct {
	Filename string `json:"filename"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	JobID    string `json:"job_id"`
}

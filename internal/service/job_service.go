package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/docpress/api/internal/client"
	"github.com/docpress/api/internal/convert"
	"github.com/docpress/api/internal/model"
	"github.com/docpress/api/internal/store"
)

const (
	TaskTypeConvert = "convert:process"
	QueueConvert    = "convert"
)

// Bucket layout: sources live under input/<job_id>/, artifacts under
// output/<job_id>/.
const (
	inputPrefix  = "input/"
	outputPrefix = "output/"
)

var (
	// ErrJobNotFound means no record was ever written for the job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrBadObjectKey means an object key does not follow the
	// input/<job_id>/<filename> layout.
	ErrBadObjectKey = errors.New("object key outside the input area")
)

// ConvertTaskPayload is the body of a queued conversion task.
type ConvertTaskPayload struct {
	JobID   string         `json:"jobId"`
	Bucket  string         `json:"bucket"`
	Key     string         `json:"key"`
	Options map[string]any `json:"options,omitempty"`
}

// TaskEnqueuer queues background tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService owns the conversion job lifecycle: creating jobs, dispatching
// conversion tasks and reducing record histories into status views.
type JobService struct {
	objects   client.ObjectStore
	records   store.RecordStore
	tasks     TaskEnqueuer
	bucket    string
	uploadTTL time.Duration
}

// NewJobService wires the job lifecycle to its storage and queue.
func NewJobService(objects client.ObjectStore, records store.RecordStore, tasks TaskEnqueuer, bucket string, uploadTTL time.Duration) *JobService {
	return &JobService{
		objects:   objects,
		records:   records,
		tasks:     tasks,
		bucket:    bucket,
		uploadTTL: uploadTTL,
	}
}

// NewJobID returns a fresh short job id.
func NewJobID() string {
	return uuid.New().String()[:8]
}

// SourceKey places an uploaded file in the job's input area.
func SourceKey(jobID, filename string) string {
	return fmt.Sprintf("%s%s/%s", inputPrefix, jobID, filename)
}

// JobIDFromKey extracts the job id segment from an input object key.
func JobIDFromKey(objectKey string) (string, error) {
	idx := strings.Index(objectKey, inputPrefix)
	if idx == -1 {
		return "", fmt.Errorf("%w: %q", ErrBadObjectKey, objectKey)
	}
	rest := objectKey[idx+len(inputPrefix):]
	slash := strings.Index(rest, "/")
	if slash <= 0 {
		return "", fmt.Errorf("%w: %q has no job id segment", ErrBadObjectKey, objectKey)
	}
	return rest[:slash], nil
}

// DestinationKey maps a source key to the stored artifact key for a format:
// the first input/ segment becomes output/ and the extension becomes the
// format label.
func DestinationKey(objectKey, format string) string {
	out := strings.Replace(objectKey, inputPrefix, outputPrefix, 1)
	ext := path.Ext(out)
	return strings.TrimSuffix(out, ext) + "." + format
}

// CreateJob reserves a job id, opens its record history with a started
// record and returns a presigned URL for uploading the source object.
func (s *JobService) CreateJob(ctx context.Context, req *model.CreateJobRequest) (*model.CreateJobResponse, error) {
	jobID := req.JobID
	if jobID == "" {
		jobID = NewJobID()
	}
	key := SourceKey(jobID, path.Base(req.Filename))

	record := model.NewStartedRecord(jobID, []string{s.objectURL(key)}, req.Metadata)
	if err := s.records.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record job start: %w", err)
	}

	uploadURL, err := s.objects.PresignPut(ctx, s.bucket, key, req.ContentType, s.uploadTTL)
	if err != nil {
		return nil, err
	}

	return &model.CreateJobResponse{
		JobID:        jobID,
		Key:          key,
		PresignedURL: uploadURL,
	}, nil
}

// UploadSource stores a directly uploaded file in the job's input area,
// opens the record history and queues the conversion. An empty jobID
// reserves a fresh one.
func (s *JobService) UploadSource(ctx context.Context, localPath, filename, contentType, jobID string) (*model.UploadResponse, error) {
	if jobID == "" {
		jobID = NewJobID()
	}
	key := SourceKey(jobID, path.Base(filename))

	if err := s.objects.Upload(ctx, localPath, s.bucket, key, contentType); err != nil {
		return nil, err
	}

	record := model.NewStartedRecord(jobID, []string{s.objectURL(key)}, nil)
	if err := s.records.Append(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record job start: %w", err)
	}

	if err := s.enqueueConversion(ctx, jobID, s.bucket, key, nil); err != nil {
		return nil, err
	}

	return &model.UploadResponse{
		Filename: filename,
		Bucket:   s.bucket,
		Key:      key,
		JobID:    jobID,
	}, nil
}

// DispatchConversion validates the event and queues a conversion task for
// the object. The job id comes from the object key.
func (s *JobService) DispatchConversion(ctx context.Context, event *model.ObjectCreatedEvent) (string, error) {
	jobID, err := JobIDFromKey(event.Key)
	if err != nil {
		return "", err
	}
	if _, err := convert.NewOptions(event.Options); err != nil {
		return "", err
	}
	if err := s.enqueueConversion(ctx, jobID, event.Bucket, event.Key, event.Options); err != nil {
		return "", err
	}
	return jobID, nil
}

// GetStatus reduces the job's record history into its current state.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	records, err := s.records.Query(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for job %s: %w", jobID, err)
	}
	if len(records) == 0 {
		return nil, ErrJobNotFound
	}
	return ReduceRecords(jobID, records), nil
}

func (s *JobService) objectURL(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *JobService) enqueueConversion(ctx context.Context, jobID, bucket, key string, options map[string]any) error {
	task, err := NewConvertTask(jobID, bucket, key, options)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.tasks.EnqueueContext(ctx, task,
		asynq.Queue(QueueConvert),
		asynq.MaxRetry(0), // failed conversions are recorded, not retried
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue conversion for job %s: %w", jobID, err)
	}
	return nil
}

// NewConvertTask builds the asynq task for one object conversion.
func NewConvertTask(jobID, bucket, key string, options map[string]any) (*asynq.Task, error) {
	data, err := json.Marshal(&ConvertTaskPayload{
		JobID:   jobID,
		Bucket:  bucket,
		Key:     key,
		Options: options,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeConvert, data), nil
}

// ReduceRecords folds a job's record history into one coherent view. The
// fold orders records by timestamp, so the result does not depend on
// storage or arrival order: the earliest started record supplies Started
// and Input, the latest terminal record supplies the rest. A job never
// leaves a terminal state, and terminal records sharing a timestamp reduce
// to success.
func ReduceRecords(jobID string, records []model.JobRecord) *model.JobStatusView {
	sorted := make([]model.JobRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return statusRank(sorted[i].Status) < statusRank(sorted[j].Status)
	})

	view := &model.JobStatusView{JobID: jobID}
	for _, r := range sorted {
		switch r.Status {
		case model.JobStatusStarted:
			if view.Started == nil {
				started := r.CreatedAt
				view.Started = &started
				if len(r.SourceURLs) > 0 {
					view.Input = r.SourceURLs[0]
				}
				if !view.Status.Terminal() {
					view.Status = model.JobStatusStarted
				}
			}
		case model.JobStatusSuccess:
			completed := r.CreatedAt
			view.Status = model.JobStatusSuccess
			view.Completed = &completed
			view.URLs = r.ResultURLs
			view.Message = ""
		case model.JobStatusError:
			completed := r.CreatedAt
			view.Status = model.JobStatusError
			view.Completed = &completed
			view.Message = r.Message
			view.URLs = nil
		}
	}
	return view
}

func statusRank(s model.JobStatus) int {
	switch s {
	case model.JobStatusStarted:
		return 0
	case model.JobStatusError:
		return 1
	default:
		return 2
	}
}

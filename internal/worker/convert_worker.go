package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/docpress/api/internal/client"
	"github.com/docpress/api/internal/convert"
	"github.com/docpress/api/internal/model"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/internal/store"
	"github.com/docpress/api/internal/websocket"
)

// artifactContentTypes maps format labels to the Content-Type stored with
// each artifact.
var artifactContentTypes = map[string]string{
	convert.FormatPDF:  "application/pdf",
	convert.FormatTxt:  "text/plain",
	convert.FormatHTML: "text/html",
	convert.FormatXML:  "application/xml",
}

// SourceNotFoundError means the object named by a conversion task is gone.
type SourceNotFoundError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source object s3://%s/%s does not exist", e.Bucket, e.Key)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// StorageWriteError means a conversion artifact could not be stored.
type StorageWriteError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("failed to store artifact s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// ConvertWorker processes conversion tasks end to end: fetch the source
// object, run the conversion strategy, store the artifacts and close the
// job's record history with a terminal record.
type ConvertWorker struct {
	objects   client.ObjectStore
	records   store.RecordStore
	converter *convert.Converter
	hub       *websocket.Hub
	resultTTL time.Duration
}

// NewConvertWorker creates a worker bound to its storage, record store,
// converter and status hub.
func NewConvertWorker(objects client.ObjectStore, records store.RecordStore, converter *convert.Converter, hub *websocket.Hub, resultTTL time.Duration) *ConvertWorker {
	return &ConvertWorker{
		objects:   objects,
		records:   records,
		converter: converter,
		hub:       hub,
		resultTTL: resultTTL,
	}
}

// ProcessTask handles one conversion task. Every failure past payload
// decoding ends the job with an error record; tasks are never retried.
func (w *ConvertWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.ConvertTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Starting conversion job %s for s3://%s/%s", payload.JobID, payload.Bucket, payload.Key)

	urls, err := w.process(ctx, &payload)
	if err != nil {
		w.failJob(ctx, payload.JobID, err)
		return err
	}

	if err := w.records.Append(ctx, model.NewSuccessRecord(payload.JobID, urls)); err != nil {
		return fmt.Errorf("failed to record success for job %s: %w", payload.JobID, err)
	}

	w.hub.BroadcastStatus(payload.JobID, model.JobStatusSuccess, urls)
	log.Printf("Conversion job %s completed", payload.JobID)
	return nil
}

// process runs the pipeline and returns presigned URLs for the source and
// every stored artifact, keyed by format label. All temp space it claims is
// released before it returns.
func (w *ConvertWorker) process(ctx context.Context, payload *service.ConvertTaskPayload) (map[string]string, error) {
	opts, err := convert.NewOptions(payload.Options)
	if err != nil {
		return nil, err
	}

	contentType, err := w.headSource(ctx, payload.Bucket, payload.Key)
	if err != nil {
		return nil, err
	}
	if !convert.IsSupportedContentType(contentType) {
		return nil, &convert.UnsupportedContentTypeError{Key: payload.Key, ContentType: contentType}
	}

	workDir, err := os.MkdirTemp("", "convert-"+payload.JobID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	localPath, err := w.downloadSource(ctx, payload.Bucket, payload.Key, workDir)
	if err != nil {
		return nil, err
	}

	artifacts, err := w.converter.Convert(ctx, localPath, contentType, opts)
	if err != nil {
		return nil, err
	}

	destinations, err := w.storeArtifacts(ctx, payload.Bucket, payload.Key, artifacts)
	if err != nil {
		return nil, err
	}

	return w.presignResults(ctx, payload.Bucket, payload.Key, destinations)
}

func (w *ConvertWorker) headSource(ctx context.Context, bucket, key string) (string, error) {
	contentType, err := w.objects.HeadContentType(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return "", &SourceNotFoundError{Bucket: bucket, Key: key, Err: err}
		}
		return "", err
	}
	return contentType, nil
}

func (w *ConvertWorker) downloadSource(ctx context.Context, bucket, key, destDir string) (string, error) {
	localPath, err := w.objects.Download(ctx, bucket, key, destDir)
	if err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return "", &SourceNotFoundError{Bucket: bucket, Key: key, Err: err}
		}
		return "", err
	}
	return localPath, nil
}

// storeArtifacts uploads every artifact to the job's output area and
// returns the destination keys by format label.
func (w *ConvertWorker) storeArtifacts(ctx context.Context, bucket, sourceKey string, artifacts convert.Output) (map[string]string, error) {
	destinations := make(map[string]string, len(artifacts))
	for format, localPath := range artifacts {
		destKey := service.DestinationKey(sourceKey, format)
		if err := w.objects.Upload(ctx, localPath, bucket, destKey, artifactContentTypes[format]); err != nil {
			return nil, &StorageWriteError{Bucket: bucket, Key: destKey, Err: err}
		}
		destinations[format] = destKey
	}
	return destinations, nil
}

// presignResults generates download URLs for the source object and each
// stored artifact.
func (w *ConvertWorker) presignResults(ctx context.Context, bucket, sourceKey string, destinations map[string]string) (map[string]string, error) {
	urls := make(map[string]string, len(destinations)+1)

	inputURL, err := w.objects.PresignGet(ctx, bucket, sourceKey, w.resultTTL)
	if err != nil {
		return nil, err
	}
	urls["input"] = inputURL

	for format, destKey := range destinations {
		url, err := w.objects.PresignGet(ctx, bucket, destKey, w.resultTTL)
		if err != nil {
			return nil, err
		}
		urls[format] = url
	}
	return urls, nil
}

// failJob closes the job with an error record and notifies subscribers.
func (w *ConvertWorker) failJob(ctx context.Context, jobID string, cause error) {
	if err := w.records.Append(ctx, model.NewErrorRecord(jobID, cause.Error())); err != nil {
		log.Printf("Failed to record error for job %s: %v", jobID, err)
	}
	w.hub.BroadcastError(jobID, errorCode(cause), cause.Error())
	log.Printf("Conversion job %s failed: %v", jobID, cause)
}

// errorCode names the failure class for websocket subscribers.
func errorCode(err error) string {
	var valErr *convert.ValidationError
	var typeErr *convert.UnsupportedContentTypeError
	var notFound *SourceNotFoundError
	var writeErr *StorageWriteError

	switch {
	case errors.As(err, &valErr):
		return "INVALID_OPTIONS"
	case errors.As(err, &typeErr):
		return "UNSUPPORTED_CONTENT_TYPE"
	case errors.As(err, &notFound):
		return "SOURCE_NOT_FOUND"
	case errors.As(err, &writeErr):
		return "STORAGE_WRITE_FAILED"
	default:
		return "CONVERSION_FAILED"
	}
}

package e2e

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/docpress/api/internal/service"
)

// createMultipartUploadRequest builds a multipart/form-data request with a
// fake source document.
func createMultipartUploadRequest(t *testing.T, filename, contentType, jobID string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if jobID != "" {
		_ = writer.WriteField("job_id", jobID)
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fakeData := make([]byte, 1024)
	_, _ = part.Write(fakeData)

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

func TestUpload_Success(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartUploadRequest(t, "scan.png", "image/png", "")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	jobID, _ := result["job_id"].(string)
	if len(jobID) != 8 {
		t.Errorf("expected 8-char job_id, got %q", jobID)
	}
	if result["filename"] != "scan.png" {
		t.Errorf("expected filename 'scan.png', got %v", result["filename"])
	}
	if result["bucket"] != testBucket {
		t.Errorf("expected bucket %q, got %v", testBucket, result["bucket"])
	}
	key, _ := result["key"].(string)
	if key != "input/"+jobID+"/scan.png" {
		t.Errorf("unexpected key: %q", key)
	}

	// The file must be in the bucket and a conversion queued
	if _, ok := ta.objects.uploads[testBucket+"/"+key]; !ok {
		t.Errorf("expected upload under %s/%s, got %v", testBucket, key, ta.objects.uploads)
	}
	if len(ta.tasks.tasks) != 1 {
		t.Fatalf("expected 1 queued task, got %d", len(ta.tasks.tasks))
	}
	var payload service.ConvertTaskPayload
	if err := json.Unmarshal(ta.tasks.tasks[0].Payload(), &payload); err != nil {
		t.Fatalf("failed to parse task payload: %v", err)
	}
	if payload.JobID != jobID || payload.Key != key {
		t.Errorf("unexpected task payload: %+v", payload)
	}
}

func TestUpload_ReusesProvidedJobID(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartUploadRequest(t, "scan.png", "image/png", "ab12cd34")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["job_id"] != "ab12cd34" {
		t.Errorf("expected job_id 'ab12cd34', got %v", result["job_id"])
	}
}

func TestUpload_MissingFile(t *testing.T) {
	ta := setupApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("job_id", "ab12cd34")
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUpload_UnsupportedContentType(t *testing.T) {
	ta := setupApp(t)

	req := createMultipartUploadRequest(t, "notes.txt", "text/plain", "")

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}

	if len(ta.tasks.tasks) != 0 {
		t.Errorf("expected no queued tasks, got %d", len(ta.tasks.tasks))
	}
}

package handler

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/docpress/api/internal/convert"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type UploadHandler struct {
	service *service.JobService
}

func NewUploadHandler(svc *service.JobService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Upload handles POST /api/upload. The file is spooled to a temp directory,
// stored in the job's input area and queued for conversion in one request.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	if !convert.IsSupportedContentType(contentType) {
		return response.ValidationError(c, "Only PDF and image uploads are supported", map[string]interface{}{
			"contentType": contentType,
		})
	}

	spoolDir, err := os.MkdirTemp("", "upload-")
	if err != nil {
		return response.ServiceError(c, "Failed to buffer upload")
	}
	defer os.RemoveAll(spoolDir)

	localPath := filepath.Join(spoolDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, localPath); err != nil {
		return response.ServiceError(c, "Failed to buffer upload")
	}

	result, err := h.service.UploadSource(c.Context(), localPath, file.Filename, contentType, c.FormValue("job_id"))
	if err != nil {
		return writeServiceError(c, err)
	}

	return response.Created(c, result)
}

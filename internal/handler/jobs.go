package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/docpress/api/internal/convert"
	"github.com/docpress/api/internal/model"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/pkg/response"
)

type JobsHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobsHandler(svc *service.JobService, v *validator.Validate) *JobsHandler {
	return &JobsHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs
func (h *JobsHandler) Create(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateJob(c.Context(), &req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return response.Created(c, result)
}

// Status handles GET /api/jobs/status. An unknown job id is not an error:
// the response is a 200 with a message, matching what polling clients
// expect while the first record is still in flight.
func (h *JobsHandler) Status(c *fiber.Ctx) error {
	jobID := c.Query("job_id")
	if jobID == "" {
		return response.ValidationError(c, "Must provide 'job_id' as query parameter", nil)
	}

	view, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.OK(c, fiber.Map{"message": fmt.Sprintf("Job '%s' not found", jobID)})
		}
		return writeServiceError(c, err)
	}

	return response.OK(c, view)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// writeServiceError maps typed service failures onto HTTP statuses.
func writeServiceError(c *fiber.Ctx, err error) error {
	var valErr *convert.ValidationError
	switch {
	case errors.As(err, &valErr):
		return response.ValidationError(c, valErr.Error(), nil)
	case errors.Is(err, service.ErrBadObjectKey):
		return response.ValidationError(c, err.Error(), nil)
	default:
		return response.ServiceError(c, err.Error())
	}
}

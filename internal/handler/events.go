package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/docpress/api/internal/model"
	"github.com/docpress/api/internal/service"
	"github.com/docpress/api/pkg/response"
)

type EventsHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewEventsHandler(svc *service.JobService, v *validator.Validate) *EventsHandler {
	return &EventsHandler{
		service:   svc,
		validator: v,
	}
}

// ObjectCreated handles POST /api/events/object-created. Bucket
// notifications land here and fan out as conversion tasks; a duplicate
// notification only re-enqueues the same conversion.
func (h *EventsHandler) ObjectCreated(c *fiber.Ctx) error {
	var event model.ObjectCreatedEvent
	if err := c.BodyParser(&event); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&event); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID, err := h.service.DispatchConversion(c.Context(), &event)
	if err != nil {
		return writeServiceError(c, err)
	}

	return response.Accepted(c, model.DispatchResponse{JobID: jobID, Key: event.Key})
}

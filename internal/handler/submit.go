package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reelscript/api/internal/fault"
	"github.com/reelscript/api/internal/model"
	"github.com/reelscript/api/pkg/response"
)

// ScriptSubmitter is the intake gate the handler fronts.
type ScriptSubmitter interface {
	Submit(ctx context.Context, req *model.ScriptRequest) (*model.SubmitResponse, error)
}

type SubmitHandler struct {
	intake    ScriptSubmitter
	validator *validator.Validate
	log       *zap.Logger
}

func NewSubmitHandler(intake ScriptSubmitter, v *validator.Validate, log *zap.Logger) *SubmitHandler {
	return &SubmitHandler{
		intake:    intake,
		validator: v,
		log:       log,
	}
}

// Submit handles POST /api/scripts. It acknowledges within the intake
// bound: the artifact itself always arrives out-of-band via the messaging
// platform (or synchronously only when it already exists).
func (h *SubmitHandler) Submit(c *fiber.Ctx) error {
	var req model.ScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.intake.Submit(c.Context(), &req)
	if err != nil {
		var f *fault.Fault
		if errors.As(err, &f) && f.Kind == fault.Validation {
			return response.ValidationError(c, "Invalid source reference", nil)
		}
		h.log.Error("submit failed", zap.Error(err))
		return response.ServiceError(c, "Could not accept the request")
	}

	return response.OK(c, result)
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

package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/pengaduan/backend/internal/apperrors"
	"github.com/pengaduan/backend/pkg/utils"
)

var validate = validator.New()

// serviceError maps the service error taxonomy onto HTTP statuses. Internal
// details never reach the client.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrPermission):
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Operation not permitted")
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Resource changed concurrently, please retry")
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error")
	}
}

func validationError(c *fiber.Ctx, err error) error {
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed on field '"+ve[0].Field()+"'")
	}
	return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed")
}

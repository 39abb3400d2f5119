package api

import (
	"strings"

	apperrors "match-engine/internal/common/errors"

	"github.com/gofiber/fiber/v2"
)

type successEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(successEnvelope{Success: true, Message: message, Data: data})
}

// failure writes err in the error envelope with a status derived from its
// code.
func failure(c *fiber.Ctx, err error, details ...string) error {
	stdErr := apperrors.Normalize(err)
	return c.Status(statusFor(stdErr)).JSON(errorEnvelope{
		Message: stdErr.Message,
		Code:    string(stdErr.Code),
		Details: details,
	})
}

func statusFor(err *apperrors.StandardError) int {
	switch {
	case err.Code == apperrors.ErrCodeRunInProgress:
		return fiber.StatusConflict
	case strings.HasSuffix(string(err.Code), "_NOT_FOUND"):
		return fiber.StatusNotFound
	case err.Category == apperrors.CategoryInput:
		return fiber.StatusBadRequest
	case err.Category == apperrors.CategoryTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

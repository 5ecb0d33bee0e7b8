package api

import (
	"errors"
	"fmt"

	"openrag/service"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is fiber's central error handler: typed API errors keep their
// status, missing records map to 404, anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiError Error
	if errors.As(err, &apiError) {
		return c.Status(apiError.Code).JSON(apiError)
	}

	var valError ValidationError
	if errors.As(err, &valError) {
		return c.Status(valError.Status).JSON(valError)
	}

	if service.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(Error{Code: fiber.StatusNotFound, Message: "not found"})
	}

	if errors.Is(err, service.ErrDocumentProcessing) {
		return c.Status(fiber.StatusConflict).JSON(Error{Code: fiber.StatusConflict, Message: err.Error()})
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return c.Status(fiberError.Code).JSON(Error{Code: fiberError.Code, Message: fiberError.Message})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(Error{
		Code:    fiber.StatusInternalServerError,
		Message: err.Error(),
	})
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

package api

import (
	"errors"
	"fmt"
	"log/slog"

	"rapidly/types"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is installed as the fiber error handler and maps pipeline
// failure kinds onto HTTP statuses: validation 422, upstream failures 502,
// timeouts 504. Nothing is swallowed, every failure reaches the caller.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiError, ok := err.(Error); ok {
		return c.Status(apiError.Code).JSON(apiError)
	}
	if valError, ok := err.(ValidationError); ok {
		return c.Status(valError.Status).JSON(valError)
	}

	var apiError Error
	switch {
	case errors.Is(err, types.ErrTimeout):
		apiError = NewError(fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, types.ErrRetrievalUnavailable),
		errors.Is(err, types.ErrStorageUnavailable),
		errors.Is(err, types.ErrAnswerGenerationFailed):
		apiError = NewError(fiber.StatusBadGateway, err.Error())
	default:
		var fiberError *fiber.Error
		if errors.As(err, &fiberError) {
			apiError = NewError(fiberError.Code, fiberError.Message)
		} else {
			apiError = NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	slog.Error("request failed", "code", apiError.Code, "message", apiError.Message)
	return c.Status(apiError.Code).JSON(apiError)
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

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
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

package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeInternal     = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeValidation:   fiber.StatusBadRequest,
	CodeNotFound:     fiber.StatusNotFound,
	CodeConflict:     fiber.StatusConflict,
	CodeUnauthorized: fiber.StatusUnauthorized,
	CodeForbidden:    fiber.StatusForbidden,
	CodeInternal:     fiber.StatusInternalServerError,
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError is a failure the API reports to clients by code.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus is the status the error is reported with. Unknown codes are 500.
func (e *AppError) HTTPStatus() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func newAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewNotFoundError(resource string, id any) *AppError {
	return newAppError(CodeNotFound, fmt.Sprintf("%s with ID %v not found", resource, id), nil)
}

func NewValidationError(message string) *AppError {
	return newAppError(CodeValidation, message, nil)
}

func NewConflictError(message string, err error) *AppError {
	return newAppError(CodeConflict, message, err)
}

func NewUnauthorizedError(message string) *AppError {
	return newAppError(CodeUnauthorized, message, nil)
}

func NewForbiddenError(message string) *AppError {
	return newAppError(CodeForbidden, message, nil)
}

// NewInternalError hides err behind a generic message.
func NewInternalError(err error) *AppError {
	return newAppError(CodeInternal, "Internal server error", err)
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// RespondWithError writes err as an ErrorResponse with the given status.
// Wrapped causes are only echoed for non-internal codes.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}

	body := ErrorResponse{Error: appErr.Message, Code: appErr.Code}
	if appErr.Err != nil && appErr.Code != CodeInternal {
		body.Details = appErr.Err.Error()
	}
	return c.Status(status).JSON(body)
}

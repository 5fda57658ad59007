package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeInternal         Code = "INTERNAL"
)

// AppError is the error type every handler responds with. Message is the
// user-facing text; Cause stays server-side.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) *AppError { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) *AppError   { return New(CodeNotFound, msg) }
func Forbidden(msg string) *AppError  { return New(CodePermissionDenied, msg) }
func Internal(msg string) *AppError   { return New(CodeInternal, msg) }

// Status maps an error to its HTTP status. Unknown errors are treated as
// internal so no store detail leaks to the client.
func Status(err error) int {
	var app *AppError
	if !errors.As(err, &app) {
		return http.StatusInternalServerError
	}
	switch app.Code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text safe to show the caller.
func UserMessage(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Message
	}
	return "Internal error"
}

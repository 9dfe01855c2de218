// Package apperror defines the error kinds shared by every layer of the app.
//
// Services return these; handlers translate them into HTTP responses.
// Wrapping with fmt.Errorf("...: %w", err) keeps errors.Is working all the
// way up the stack.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrStorageWrite = errors.New("storage write failed")
)

// AppError pairs a sentinel kind with the message shown to API clients.
type AppError struct {
	Err     error  // sentinel kind, matched with errors.Is
	Message string // client-facing message, part of the API contract
	Field   string // optional: field causing the error
	Detail  string // optional: extra context for logs, never sent to clients
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that no record of the given resource has that id.
// The message is the same for every resource so clients can match on it.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: "Not found",
		Field:   "id",
		Detail:  fmt.Sprintf("%s %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// StorageWrite wraps a persistence failure. The cause stays reachable
// through Detail for logging; clients only ever see a generic 500.
func StorageWrite(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorageWrite,
		Message: "storage write failed",
		Detail:  fmt.Sprintf("%s: %v", op, cause),
	}
}

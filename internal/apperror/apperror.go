// Package apperror defines the domain error taxonomy shared by every layer.
//
// SENTINELS + WRAPPER:
// Each failure category is a sentinel (ErrNotFound, ErrValidation, ...).
// Services never return the sentinels bare; they return an *AppError that
// carries a human-readable message and wraps the sentinel, so callers can
// still test the category with errors.Is:
//
//	err := apperror.NotFound("food", id)
//	errors.Is(err, apperror.ErrNotFound) // true
//
// The HTTP layer is the only place that turns categories into status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type AppError struct {
	Err     error  // category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// ConflictMsg covers both state conflicts ("this food item is no longer
// available") and unique-key clashes such as a duplicate email.
func ConflictMsg(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated means no valid identity was presented (bad credentials,
// missing or expired session). HTTP handlers map this to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Package apperr defines the error kinds shared by the registries and the
// allocation engine. Callers wrap one of the sentinels with fmt.Errorf("%w")
// and inspect the kind with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput covers blank identifiers, missing dates and bad date ordering.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a referenced patient, bed or stay does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStateTransition is returned when a stay lifecycle rule is violated.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrConflict is returned for duplicate identifiers and concurrent writers.
	ErrConflict = errors.New("conflict")
)

// InvalidInput returns an ErrInvalidInput with a formatted message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s with id %s does not exist", ErrNotFound, entity, id)
}

// InvalidTransition returns an ErrInvalidStateTransition with a formatted message.
func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, fmt.Sprintf(format, args...))
}

// Conflict returns an ErrConflict with a formatted message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error kind to the response code used by the HTTP layer.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

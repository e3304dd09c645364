// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/remiblancher/primlab/internal/api/dto"
	"github.com/remiblancher/primlab/internal/api/service"
	"github.com/remiblancher/primlab/internal/primitive"
)

// Error codes for API responses.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeNoReport       = "NO_REPORT"
	CodeRunInProgress  = "RUN_IN_PROGRESS"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeCancelled      = "CANCELLED"
	CodeInternal       = "INTERNAL_ERROR"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict, &dto.APIError{
			Code:    CodeRunInProgress,
			Message: err.Error(),
		}
	case errors.Is(err, service.ErrNoReport):
		return http.StatusNotFound, &dto.APIError{
			Code:    CodeNoReport,
			Message: err.Error(),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, &dto.APIError{
			Code:    CodeCancelled,
			Message: err.Error(),
		}
	}

	var ce *primitive.ConfigurationError
	if errors.As(err, &ce) {
		details := map[string]string{"kind": ce.Kind.Error()}
		if ce.Primitive != "" {
			details["primitive"] = ce.Primitive
		}
		if ce.Backend != "" {
			details["backend"] = ce.Backend
		}
		return http.StatusUnprocessableEntity, &dto.APIError{
			Code:    CodeConfiguration,
			Message: err.Error(),
			Details: details,
		}
	}

	return http.StatusInternalServerError, &dto.APIError{
		Code:    CodeInternal,
		Message: "An internal error occurred",
	}
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}

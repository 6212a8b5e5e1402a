package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/analog-buddy/iotdash/internal/dashboard"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// API error codes for transport and lookup conditions
var (
	ErrBadRequest  = errors.New("BAD_REQUEST")
	ErrNotFound    = errors.New("NOT_FOUND")
	ErrUnavailable = errors.New("UNAVAILABLE")
)

// ToAPIError converts an error to an API error with HTTP status code and JSON body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	switch {
	case errors.Is(err, telemetry.ErrMalformed):
		return http.StatusBadRequest, marshalErrorResponse("MALFORMED", "Message is not valid telemetry JSON", detail(err))
	case errors.Is(err, telemetry.ErrIncomplete):
		return http.StatusBadRequest, marshalErrorResponse("INCOMPLETE", "Message lacks a timestamp, device id or channel value", detail(err))
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, marshalErrorResponse("BAD_REQUEST", "Malformed or missing required parameter", detail(err))
	case errors.Is(err, dashboard.ErrUnknownDevice), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Device not found", nil)
	case errors.Is(err, dashboard.ErrNoData):
		return http.StatusNotFound, marshalErrorResponse("NO_DATA", "Device has no readings to render", nil)
	case errors.Is(err, dashboard.ErrLoopClosed), errors.Is(err, dashboard.ErrSessionClosed),
		errors.Is(err, ErrUnavailable), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", "Service is temporarily unavailable", nil)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", map[string]interface{}{
		"original": err.Error(),
	})
}

func detail(err error) map[string]interface{} {
	return map[string]interface{}{"reason": err.Error()}
}

// marshalErrorResponse creates a JSON error response with correlation ID.
func marshalErrorResponse(code, message string, details interface{}) []byte {
	jsonBytes, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		fallback := map[string]interface{}{
			"result":        "error",
			"code":          "INTERNAL",
			"message":       "Failed to marshal error response",
			"correlationId": generateCorrelationID(),
		}
		jsonBytes, _ = json.Marshal(fallback)
	}
	return jsonBytes
}

// NewAPIError creates a new API error.
func NewAPIError(code string, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error describes a non-2xx response from the backend.
type Error struct {
	// Message is the backend's "error" field, or "HTTP <status>" when absent.
	Message string
	Status  int
	// Data holds the decoded JSON body (map, slice, scalar) or the raw text body.
	Data any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// StatusOf extracts the HTTP status from an *Error, returning 0 for other errors.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Status
	}
	return 0
}

// IsStatus reports whether err is an *Error carrying the given status.
func IsStatus(err error, status int) bool {
	return StatusOf(err) == status
}

// IsUnauthorized reports whether the backend rejected the call for lack of a session.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// MessageOr returns the user-facing message of an *Error, or fallback for anything else.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

func errorFromPayload(status int, payload *Payload) *Error {
	apiErr := &Error{
		Message: fmt.Sprintf("HTTP %d", status),
		Status:  status,
	}
	if payload == nil {
		return apiErr
	}
	if !payload.IsJSON() {
		apiErr.Data = payload.Text
		return apiErr
	}

	var data any
	if err := json.Unmarshal(payload.JSON, &data); err != nil {
		apiErr.Data = string(payload.JSON)
		return apiErr
	}
	apiErr.Data = data
	if obj, ok := data.(map[string]any); ok {
		if msg, ok := obj["error"].(string); ok && strings.TrimSpace(msg) != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

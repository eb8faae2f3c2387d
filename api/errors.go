package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"moob/models"
)

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	Messages   models.ErrorMessages
	// Name is the backend "error" field, e.g. "Unauthorized".
	Name string
}

func (e *Error) Error() string {
	if text := e.text(); text != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, text)
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *Error) text() string {
	parts := make([]string, 0, len(e.Messages.Values))
	for _, v := range e.Messages.Values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func decodeError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}

	var payload models.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Messages = payload.Message
		apiErr.Name = payload.Error
	}
	return apiErr
}

// Message extracts the display text for err: the backend message when it is
// a string, the backend messages joined with ", " when it is a list, and
// fallback otherwise.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if text := apiErr.text(); text != "" {
			return text
		}
	}
	return fallback
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

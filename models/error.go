package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorResponse is the backend error body.
type ErrorResponse struct {
	StatusCode int           `json:"statusCode"`
	Message    ErrorMessages `json:"message"`
	Error      string        `json:"error,omitempty"`
}

// ErrorMessages holds the backend "message" field, which is either a single
// string or an array of validation messages.
type ErrorMessages struct {
	Values []string
	// List is true when the payload was an array.
	List bool
}

// UnmarshalJSON accepts a string, an array of strings, or null.
func (m *ErrorMessages) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*m = ErrorMessages{}
		return nil
	}

	switch raw[0] {
	case '"':
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return err
		}
		*m = ErrorMessages{Values: []string{single}}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		*m = ErrorMessages{Values: list, List: true}
		return nil
	default:
		return fmt.Errorf("unsupported error message payload %s", raw)
	}
}

// MarshalJSON writes the same shape that was read.
func (m ErrorMessages) MarshalJSON() ([]byte, error) {
	if m.List {
		if m.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(m.Values)
	}
	if len(m.Values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(m.Values[0])
}

// Empty reports whether no message was provided.
func (m ErrorMessages) Empty() bool {
	for _, v := range m.Values {
		if v != "" {
			return false
		}
	}
	return true
}

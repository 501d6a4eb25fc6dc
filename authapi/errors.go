package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const genericErrorMessage = "authentication request failed"

// Error is a transport-level failure from the auth API, carrying the HTTP
// status and a message normalized from the server's structured error body.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth api: %s (status %d)", e.Message, e.StatusCode)
}

// IsUnauthorized reports whether err is an API error with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized
}

// errorBody covers the shapes the server emits: FastAPI's "detail" (a plain
// string or a list of field errors) and the structured {error, message} form.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type fieldError struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// normalizeErrorMessage extracts a single human-readable message from a raw
// error response body, falling back to a generic message when the body is
// empty or unparseable.
func normalizeErrorMessage(body []byte) string {
	if len(body) == 0 {
		return genericErrorMessage
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return genericErrorMessage
	}

	if msg := detailMessage(parsed.Detail); msg != "" {
		return msg
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if parsed.Error != "" {
		return parsed.Error
	}
	return genericErrorMessage
}

func detailMessage(detail json.RawMessage) string {
	if len(detail) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(detail, &single); err == nil {
		return single
	}

	var fields []fieldError
	if err := json.Unmarshal(detail, &fields); err == nil {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			switch {
			case f.Msg != "":
				msgs = append(msgs, f.Msg)
			case f.Message != "":
				msgs = append(msgs, f.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return ""
}

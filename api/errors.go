package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConnectivityError indicates the backend could not be reached at all.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach marketplace backend at %s: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// APIError indicates the backend answered with an error status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// SchemaError indicates a successful response whose body did not match the committed shape.
type SchemaError struct {
	Endpoint string
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected response shape from %s: %v", e.Endpoint, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// errorMessage extracts a human message from an error response body.
// Order: "message" field, JSON string body, "errors" array, raw body.
func errorMessage(status int, body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return http.StatusText(status)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		if s != "" {
			return s
		}
		return http.StatusText(status)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		// Not JSON at all, e.g. an HTML error page from a proxy.
		return raw
	}

	if m, ok := obj["message"]; ok {
		var msg string
		if err := json.Unmarshal(m, &msg); err == nil && msg != "" {
			return msg
		}
	}

	if e, ok := obj["errors"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(e, &items); err == nil && len(items) > 0 {
			var parts []string
			for _, item := range items {
				if p := errorItem(item); p != "" {
					parts = append(parts, p)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
	}

	return raw
}

// errorItem renders one element of an "errors" array: a plain string or an
// object carrying msg/message.
func errorItem(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return s
	}
	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Msg != "" {
			return obj.Msg
		}
	}
	return strings.TrimSpace(string(item))
}

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a remote API failure carrying the HTTP status code, so the
// executor can decide between retrying and failing the item immediately.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
}

// IsTransient reports whether the error is a 429 or 5xx remote failure,
// which the write path retries with backoff.
func IsTransient(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

// IsFatal reports whether the error is a 401/403/404 remote failure. These
// are never retried: the item is recorded as failed and processing moves on.
func IsFatal(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Sentinel errors matched by APIError.Is.
var (
	ErrInvalidToken = errors.New("telegram: invalid token")
	ErrForbidden    = errors.New("telegram: forbidden")
	ErrNotFound     = errors.New("telegram: not found")
	ErrConflict     = errors.New("telegram: conflict")
)

// APIError represents an error response from the Telegram Bot API.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %d %s (retry after %ds)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// Is maps the HTTP-style error code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidToken:
		return e.Code == http.StatusUnauthorized
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrConflict:
		return e.Code == http.StatusConflict
	}
	return false
}

// TransportError is returned when a request never produced an API response.
// The request URL is dropped from the message because it embeds the token.
type TransportError struct {
	Method string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	inner := e.Err
	var uerr *url.Error
	if errors.As(inner, &uerr) {
		inner = uerr.Err
	}
	return fmt.Sprintf("telegram: %s request failed: %v", e.Method, inner)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err means polling can never succeed without
// operator action: bad credentials, forbidden access, unknown endpoint, or
// another instance (or a webhook) consuming the same bot's updates.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}

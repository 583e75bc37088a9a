// Package apierrors provides shared error types for the e3kit HTTP layer.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingToken is returned when the token source yields an empty token.
	ErrMissingToken = errors.New("authentication token is empty")

	// ErrUnauthorized is returned when the token is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired token")

	// ErrForbidden is returned when the token subject may not access the resource.
	ErrForbidden = errors.New("token subject does not match identity")

	// ErrCardNotFound is returned when no card exists for an identity.
	ErrCardNotFound = errors.New("card not found")

	// ErrEntryNotFound is returned when a cloud entry does not exist.
	ErrEntryNotFound = errors.New("cloud entry not found")

	// ErrConflict is returned when a write loses a version race or a
	// create-only write finds an existing entry.
	ErrConflict = errors.New("version conflict")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ResourceType indicates which type of resource an error relates to.
type ResourceType string

const (
	// ResourceUnknown indicates the resource type is not specified.
	ResourceUnknown ResourceType = ""
	// ResourceCard indicates the error relates to a directory card.
	ResourceCard ResourceType = "card"
	// ResourceEntry indicates the error relates to a cloud key entry.
	ResourceEntry ResourceType = "keyknox"
)

// APIError represents an HTTP error from an e3kit service.
type APIError struct {
	StatusCode   int
	Message      string
	RequestID    string
	ResourceType ResourceType
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusNotFound:
		switch e.ResourceType {
		case ResourceCard:
			return target == ErrCardNotFound
		case ResourceEntry:
			return target == ErrEntryNotFound
		default:
			return target == ErrCardNotFound || target == ErrEntryNotFound
		}
	case http.StatusConflict, http.StatusPreconditionFailed:
		return target == ErrConflict
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	}
	return false
}

// WithResourceType returns a copy of the error with the resource type set.
// If the error is not an *APIError, it is returned unchanged.
func WithResourceType(err error, rt ResourceType) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode:   apiErr.StatusCode,
			Message:      apiErr.Message,
			RequestID:    apiErr.RequestID,
			ResourceType: rt,
		}
	}
	return err
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TokenError reports that no usable token could be obtained before a request.
// It always matches ErrUnauthorized.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("obtain token: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TokenError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TokenError) Is(target error) bool {
	return target == ErrUnauthorized
}

package ragpack

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by APIError codes. Use errors.Is() to check.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrProviderFailed       = errors.New("upstream provider failed")
	ErrFactStoreUnavailable = errors.New("fact store unavailable")
	ErrNotImplemented       = errors.New("not implemented")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("ragpack: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ragpack: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the service error code to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "bad_request", "validation_failed":
		return ErrInvalidRequest
	case "unauthorized":
		return ErrUnauthorized
	case "embedding_provider_error", "completion_failed", "retrieval_failed":
		return ErrProviderFailed
	case "fact_store_unavailable":
		return ErrFactStoreUnavailable
	case "not_implemented":
		return ErrNotImplemented
	default:
		return nil
	}
}

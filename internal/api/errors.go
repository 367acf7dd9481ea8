package api

import (
	"errors"
	"fmt"
)

// Upstream failure taxonomy. The pipeline components treat these as
// skip-and-continue conditions; nothing here is retried by the client itself.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRateLimited = errors.New("upstream rate limit exceeded")
	ErrMaintenance = errors.New("upstream under maintenance")
	ErrForbidden   = errors.New("upstream authentication failed")
	ErrInvalidTag  = errors.New("invalid player tag")
)

// APIError wraps an unexpected upstream status code.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream API returned status %d", e.StatusCode)
}

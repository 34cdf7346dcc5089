package hh

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// APIError is a non-2xx response from the board after all retries.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hh api %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Unwrap maps status classes onto the domain sentinels so callers can use
// errors.Is without knowing about HTTP.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 401:
		return domain.ErrAuthRequired
	case e.Status == 404:
		return domain.ErrNotFound
	case e.Status == 409:
		return domain.ErrConflict
	case e.Status == 429:
		return domain.ErrRateLimited
	case e.Status >= 400 && e.Status < 500:
		return domain.ErrInvalidArgument
	default:
		return domain.ErrUpstream
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

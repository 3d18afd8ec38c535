package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from an external capability.
type APIError struct {
	Service string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, e.Body)
}

// IsTransient reports whether err looks like a rate limit or server-side
// failure that a later attempt could survive. Transport errors (timeouts,
// resets) carry no APIError and count as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return true
}

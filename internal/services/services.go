// package services defines the Google-facing transport used by the remote store and the authorization provider
package services

import (
	"errors"
	"net/http"

	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// StatusCode extracts the HTTP status carried by err.
//
// Returns 200 for a nil error, 401 when no credential was available to authorize the request,
// and 0 when the failure never produced a response (network or decoding errors).
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return retrieveErr.Response.StatusCode
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}

	if errors.Is(err, shared.ErrNotAuthenticated) {
		return http.StatusUnauthorized
	}

	return 0
}

// IsUnauthorized reports whether err signals an invalid or missing credential.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// StatusError is a non-2xx response from an endpoint without a generated client.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.Code) + ": " + e.Body
}

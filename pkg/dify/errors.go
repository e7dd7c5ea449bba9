package dify

import (
	"errors"
	"fmt"
)

// ErrMissingBaseURL is returned by New when no endpoint is configured.
var ErrMissingBaseURL = errors.New("dify base URL is required")

// BackendRequestError reports a non-success status on the initial response.
// No fragments are produced for such a call.
type BackendRequestError struct {
	StatusCode int

	// Body holds the start of the response body, for diagnostics only.
	Body string
}

func (e *BackendRequestError) Error() string {
	return fmt.Sprintf("dify API request failed with status %d", e.StatusCode)
}

// TransportError reports a failure to connect or to keep reading the stream.
// Fragments yielded before the failure stay valid.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "dify stream transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

package client

import "errors"

var (
	// ErrUnavailable covers transport failures and 5xx answers. The request
	// may be retried later.
	ErrUnavailable = errors.New("server unavailable")
	// ErrRejected means the server refused the request content (4xx).
	ErrRejected = errors.New("request rejected")
	// ErrForbidden means none of the presented signatures owns the sighting.
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not found")
)

// Package client talks to the birdwatch remote service over HTTP/JSON.
//
// HTTPClient implements Client. Non-2xx answers and transport failures are
// mapped to the sentinel errors in errors.go so callers can branch with
// errors.Is: ErrUnavailable means "try again later" and is what keeps an
// offline queue intact, the others are final.
package client

package graph

import (
	"errors"
	"net/http"
)

// Error types for upstream directory provider responses.
var (
	// ErrUnauthorized indicates the access token is invalid, expired, or
	// could not be refreshed. Callers should route the user towards
	// re-connecting their account.
	ErrUnauthorized = errors.New("graph: unauthorized")

	// ErrForbidden indicates the account lacks permission for the resource.
	ErrForbidden = errors.New("graph: forbidden")

	// ErrNotFound indicates the requested resource does not exist upstream.
	ErrNotFound = errors.New("graph: not found")

	// ErrRateLimited indicates the request was throttled by the provider.
	ErrRateLimited = errors.New("graph: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("graph: bad request")

	// ErrUpstreamUnavailable indicates a network failure, timeout, or
	// server-side error. Non-critical read paths degrade to fallback data
	// on this error; mutating paths propagate it.
	ErrUpstreamUnavailable = errors.New("graph: upstream unavailable")
)

// wrapStatus converts an HTTP status code to an appropriate error.
func wrapStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrUpstreamUnavailable
		}
		return nil
	}
}

// IsDegradable reports whether a read error may be served from fallback
// data. Auth failures are never degradable: the caller must re-authenticate,
// not see stale sample data.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrRateLimited)
}

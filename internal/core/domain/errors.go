package domain

import "errors"

// Error kinds surfaced by the use-case layer. Handlers map these to HTTP
// statuses; everything else is a 500.
var (
	// ErrInvalidQuery marks malformed or out-of-range request parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUpstreamUnavailable marks a failure of the external data source
	// (network error, non-2xx status, undecodable payload). Distinct from
	// normalization, which never fails.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound marks a listing the upstream does not know.
	ErrNotFound = errors.New("not found")
)

package rate

import "errors"

var (
	// ErrInvalidLimit is returned for a non-positive limit or window.
	ErrInvalidLimit = errors.New("rate limit and window must be > 0")
	// ErrInvalidOperation is returned for an empty operation name or one
	// outside [a-z0-9_.-].
	ErrInvalidOperation = errors.New("rate limit operation must match [a-z0-9_.-]+")
)

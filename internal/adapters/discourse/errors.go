package discourse

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrRateLimited means the same page hit 429 until retries ran out.
	// It aborts the whole fetch: a caller continuing past it would get a
	// silently incomplete dataset.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// errTooManyRequests marks a single 429 response inside the retry loop.
var errTooManyRequests = errors.New("too many requests")

// isRateLimited reports whether err stems from a 429 response.
func isRateLimited(err error) bool {
	return errors.Is(err, errTooManyRequests) || errors.Is(err, ErrRateLimited)
}

// isFatal reports whether err must abort the fetch instead of being
// downgraded to a partial result.
func isFatal(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

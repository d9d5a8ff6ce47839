package term

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMalformedTerm = errors.New("malformed term")
)

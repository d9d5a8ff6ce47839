package app

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrBootstrapFailed means a mapping load failed during startup; the
	// service must not begin serving without its mappings.
	ErrBootstrapFailed = errors.New("bootstrap failed")

	// ErrResetFailed marks a full reset that was rolled back.
	ErrResetFailed = errors.New("full reset failed")

	// ErrNoActivity means an insight was requested for a course whose
	// event log is empty this term.
	ErrNoActivity = errors.New("no activity recorded")
)

package config

import "errors"

// Sentinel error kinds for this package, matchable via errors.Is.
var (
	// ErrInvalidConfig marks a loaded config that fails validation, such
	// as missing analytics credentials or a non-positive term count.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig marks a failure reading or parsing a config source.
	ErrLoadConfig = errors.New("load config failed")
)

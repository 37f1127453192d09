package config

import "errors"

var (
	// ErrUnknownKey is returned for config keys folio does not recognize,
	// either in a config file or on the command line.
	ErrUnknownKey = errors.New("unknown config key")

	// ErrInvalidConfig is returned when a recognized option has an unusable value.
	ErrInvalidConfig = errors.New("invalid config")
)

package config

import "errors"

var (
	// ErrUnknownKeys is returned when a config file sets keys no section defines.
	ErrUnknownKeys = errors.New("unknown configuration keys")

	// ErrInvalid wraps every range or consistency failure found by Validate.
	ErrInvalid = errors.New("invalid configuration")
)

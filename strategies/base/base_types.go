package base

import "errors"

var (
	// ErrCustomSettingsUnsupported used when custom settings are found in the
	// run config when they shouldn't be
	ErrCustomSettingsUnsupported = errors.New("custom settings not supported")
	// ErrInvalidCustomSettings used when bad custom settings are found in the
	// run config
	ErrInvalidCustomSettings = errors.New("invalid custom settings in config")
	// ErrExchangeUnset used when a strategy is driven without an exchange
	// handle
	ErrExchangeUnset = errors.New("exchange not set")
	// ErrTooMuchBadData used when there is too much missing data to signal
	// responsibly
	ErrTooMuchBadData = errors.New("too much invalid data to continue")
)

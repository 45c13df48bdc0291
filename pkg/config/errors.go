package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct.
	ErrParsingConfig = errors.New("config: failed to parse environment variables")

	// ErrNilPointer is returned when a nil pointer is provided to Load.
	ErrNilPointer = errors.New("config: nil pointer provided to config loader")

	// ErrConfigUnavailable is returned when the stream server address cannot be determined.
	ErrConfigUnavailable = errors.New("config: stream server address unavailable")

	// ErrEmptySocketURL is returned when the runtime config document has no socketUrl.
	ErrEmptySocketURL = errors.New("config: runtime config has empty socketUrl")
)

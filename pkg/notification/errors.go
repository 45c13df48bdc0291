package notification

import "errors"

var (
	// ErrInvalidID is returned when an id is neither a JSON string nor a number.
	ErrInvalidID = errors.New("notification: invalid id")

	// ErrFieldNotFound is returned by Field when the member is absent.
	ErrFieldNotFound = errors.New("notification: field not found")
)

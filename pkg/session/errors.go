package session

import "errors"

var (
	// ErrMissingToken indicates an empty session token.
	ErrMissingToken = errors.New("session.missing_token")

	// ErrMalformedToken indicates the token claims could not be decoded.
	ErrMalformedToken = errors.New("session.malformed_token")
)

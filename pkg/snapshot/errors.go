package snapshot

import "errors"

var (
	ErrEmptyKey                     = errors.New("snapshot: empty key")
	ErrEncode                       = errors.New("snapshot: failed to encode")
	ErrDecode                       = errors.New("snapshot: failed to decode")
	ErrFailedToParseRedisConnString = errors.New("snapshot: failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("snapshot: redis did not become ready within the given time period")
	ErrHealthcheckFailed            = errors.New("snapshot: redis healthcheck failed")
)

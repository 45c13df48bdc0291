package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/storedesk/notifykit/pkg/config"
)

var (
	// ErrConfigUnavailable aliases config.ErrConfigUnavailable so callers can
	// match resolve failures without importing config.
	ErrConfigUnavailable = config.ErrConfigUnavailable

	ErrHandshakeRejected  = errors.New("realtime: handshake rejected")
	ErrDialFailed         = errors.New("realtime: dial failed")
	ErrClosed             = errors.New("realtime: client closed")
	ErrNotConnected       = errors.New("realtime: stream not connected")
	ErrConnectAborted     = errors.New("realtime: connect aborted by disconnect")
	ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")
	ErrMalformedFrame     = errors.New("realtime: malformed frame")
	ErrUnknownEvent       = errors.New("realtime: unknown event")
)

// Structured codes the backend uses for authorization failures.
var permissionCodes = []string{"permission_denied", "forbidden"}

// HandshakeError describes a rejected stream handshake.
type HandshakeError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *HandshakeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "realtime: handshake rejected with status %d", e.StatusCode)
	if e.Code != "" {
		b.WriteString(" (" + e.Code + ")")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func (e *HandshakeError) Is(target error) bool { return target == ErrHandshakeRejected }

// PermissionDenied reports whether the rejection is an authorization failure.
func (e *HandshakeError) PermissionDenied() bool {
	return classifyPermission(e.StatusCode, e.Code, e.Message)
}

// Unauthorized reports 401/403 rejections, which retrying cannot fix.
func (e *HandshakeError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsPermissionDenied classifies err as a permission failure. Structured data
// (HTTP 403, code "permission_denied" or "forbidden") wins; the message text
// is consulted only when no structured code is available.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	var he *HandshakeError
	if errors.As(err, &he) {
		return he.PermissionDenied()
	}
	var er ErrorReported
	if errors.As(err, &er) {
		return er.PermissionDenied()
	}
	return classifyPermission(0, "", err.Error())
}

func classifyPermission(status int, code, message string) bool {
	if status == http.StatusForbidden {
		return true
	}
	if code != "" {
		return slices.Contains(permissionCodes, strings.ToLower(code))
	}
	return strings.Contains(strings.ToLower(message), "permission")
}

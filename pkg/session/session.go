package session

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storedesk/notifykit/pkg/rbac"
)

// PermissionViewNotifications gates the real-time notification stream.
const PermissionViewNotifications = "notifications.view"

// Session is the authenticated console session as seen by the notification
// pipeline. It is produced by the auth layer; this package only reads it.
type Session struct {
	Token       string
	UserID      string
	Role        string
	Permissions []string
	ExpiresAt   time.Time
}

// HasToken reports whether a non-empty token is present.
func (s Session) HasToken() bool {
	return strings.TrimSpace(s.Token) != ""
}

// Can reports whether the session's explicit permission set covers permission.
func (s Session) Can(permission string) bool {
	return rbac.Has(s.Permissions, permission)
}

// IsExpired reports whether the token expiry is known and in the past.
func (s Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// PermissionChecker decides whether a session may view notifications.
type PermissionChecker func(Session) bool

// CanViewNotifications is the default PermissionChecker.
func CanViewNotifications(s Session) bool {
	return s.Can(PermissionViewNotifications)
}

// RoleChecker grants access through either the explicit permission set or the
// permissions of the session role in auth.
func RoleChecker(auth *rbac.Authorizer) PermissionChecker {
	return func(s Session) bool {
		if s.Can(PermissionViewNotifications) {
			return true
		}
		if auth == nil || s.Role == "" {
			return false
		}
		return auth.Can(s.Role, PermissionViewNotifications) == nil
	}
}

// permissionList accepts either a JSON array or a space/comma separated string.
type permissionList []string

func (p *permissionList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*p = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*p = rbac.ParsePermissions(s)
	return nil
}

type claims struct {
	jwt.RegisteredClaims
	Role        string         `json:"role,omitempty"`
	Permissions permissionList `json:"permissions,omitempty"`
}

// FromToken builds a Session from the claims of a bearer token. The signature
// is not verified: the console forwards the token to the backend, which does.
func FromToken(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrMissingToken
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Session{}, errors.Join(ErrMalformedToken, err)
	}

	s := Session{
		Token:       token,
		UserID:      c.Subject,
		Role:        c.Role,
		Permissions: c.Permissions,
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storedesk/notifykit/pkg/rbac"
	"github.com/storedesk/notifykit/pkg/session"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("permissions as array", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":         "user-1",
			"role":        "manager",
			"permissions": []string{"notifications.view", "inventory.read"},
			"exp":         exp.Unix(),
		})

		sess, err := session.FromToken(token)
		require.NoError(t, err)
		assert.Equal(t, token, sess.Token)
		assert.Equal(t, "user-1", sess.UserID)
		assert.Equal(t, "manager", sess.Role)
		assert.Equal(t, []string{"notifications.view", "inventory.read"}, sess.Permissions)
		assert.True(t, exp.Equal(sess.ExpiresAt))
		assert.True(t, session.CanViewNotifications(sess))
	})

	t.Run("permissions as string", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{
			"sub":         "user-2",
			"permissions": "pos.sell notifications.*",
		})

		sess, err := session.FromToken(token)
		require.NoError(t, err)
		assert.Equal(t, []string{"pos.sell", "notifications.*"}, sess.Permissions)
		assert.True(t, session.CanViewNotifications(sess))
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := session.FromToken("  ")
		assert.ErrorIs(t, err, session.ErrMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := session.FromToken("not-a-jwt")
		assert.ErrorIs(t, err, session.ErrMalformedToken)
	})
}

func TestSession(t *testing.T) {
	t.Run("has token", func(t *testing.T) {
		assert.False(t, session.Session{}.HasToken())
		assert.False(t, session.Session{Token: "  "}.HasToken())
		assert.True(t, session.Session{Token: "abc"}.HasToken())
	})

	t.Run("expiry", func(t *testing.T) {
		now := time.Now()
		assert.False(t, session.Session{}.IsExpired(now))
		assert.True(t, session.Session{ExpiresAt: now.Add(-time.Minute)}.IsExpired(now))
		assert.False(t, session.Session{ExpiresAt: now.Add(time.Minute)}.IsExpired(now))
	})

	t.Run("default checker denies without permission", func(t *testing.T) {
		assert.False(t, session.CanViewNotifications(session.Session{Token: "t", Permissions: []string{"pos.sell"}}))
	})
}

func TestRoleChecker(t *testing.T) {
	auth, err := rbac.NewAuthorizer(context.Background(), rbac.NewInMemRoleSource(map[string]rbac.Role{
		"cashier": {Permissions: []string{"pos.sell"}},
		"manager": {Permissions: []string{"notifications.view"}},
	}))
	require.NoError(t, err)

	checker := session.RoleChecker(auth)

	assert.True(t, checker(session.Session{Role: "manager"}))
	assert.False(t, checker(session.Session{Role: "cashier"}))
	assert.False(t, checker(session.Session{}))
	assert.True(t, checker(session.Session{Role: "cashier", Permissions: []string{"notifications.view"}}))
	assert.False(t, session.RoleChecker(nil)(session.Session{Role: "manager"}))
}

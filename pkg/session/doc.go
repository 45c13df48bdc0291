// Package session describes the authenticated console session consumed by the
// notification pipeline: a bearer token plus the permission set used to decide
// whether the real-time stream may be opened at all.
//
// Sessions are usually decoded from the token the auth layer already holds:
//
//	sess, err := session.FromToken(token)
//	if err != nil {
//	    return err
//	}
//	if !session.CanViewNotifications(sess) {
//	    // no bell, no stream
//	}
//
// When tokens carry only a role, combine with an rbac.Authorizer:
//
//	checker := session.RoleChecker(auth)
package session

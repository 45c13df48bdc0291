// Package rbac maps back-office roles to permission strings.
//
// Permissions are dot-separated ("notifications.view", "inventory.adjust") and
// may use a trailing wildcard ("inventory.*") or the global wildcard "*".
// Roles can inherit from other roles; inheritance is resolved once when the
// Authorizer is built.
//
//	source := rbac.NewYAMLFileRoleSource("roles.yaml")
//	auth, err := rbac.NewAuthorizer(ctx, source)
//	if err != nil {
//	    return err
//	}
//	if err := auth.Can("manager", "notifications.view"); err != nil {
//	    // hide the bell
//	}
package rbac

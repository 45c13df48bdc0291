package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// RoleSource provides role definitions.
type RoleSource interface {
	Load(ctx context.Context) (map[string]Role, error)
}

// Authorizer answers permission questions for back-office roles
// (cashier, store manager, admin, ...).
type Authorizer struct {
	// resolved holds direct and inherited permissions per role; read-only after construction.
	resolved map[string][]string
}

// NewAuthorizer loads roles from source, rejects circular inheritance and
// precomputes the effective permission set of every role.
func NewAuthorizer(ctx context.Context, source RoleSource) (*Authorizer, error) {
	roles, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = map[string]Role{}
	}

	resolved := make(map[string][]string, len(roles))
	for name := range roles {
		perms, err := collect(name, roles, nil)
		if err != nil {
			return nil, err
		}
		resolved[name] = normalize(perms)
	}

	return &Authorizer{resolved: resolved}, nil
}

// Can returns nil when role holds permission.
func (a *Authorizer) Can(role, permission string) error {
	perms, ok := a.resolved[role]
	if !ok {
		return ErrInvalidRole
	}
	if !Has(perms, permission) {
		return ErrInsufficientPermissions
	}
	return nil
}

// Permissions returns the effective permissions of role, or nil for unknown roles.
func (a *Authorizer) Permissions(role string) []string {
	return slices.Clone(a.resolved[role])
}

// Roles returns the sorted role names.
func (a *Authorizer) Roles() []string {
	names := make([]string, 0, len(a.resolved))
	for name := range a.resolved {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func collect(name string, roles map[string]Role, path []string) ([]string, error) {
	if slices.Contains(path, name) {
		return nil, errors.Join(ErrCircularInheritance,
			fmt.Errorf("circular inheritance detected: %v -> %s", path, name))
	}
	if len(path) > MaxInheritanceDepth {
		return nil, errors.Join(ErrCircularInheritance,
			fmt.Errorf("inheritance depth exceeds maximum allowed depth of %d", MaxInheritanceDepth))
	}

	role, ok := roles[name]
	if !ok {
		return nil, nil
	}

	perms := slices.Clone(role.Permissions)
	path = append(path, name)
	for _, parent := range role.Inherits {
		inherited, err := collect(parent, roles, path)
		if err != nil {
			return nil, err
		}
		perms = append(perms, inherited...)
	}
	return perms, nil
}

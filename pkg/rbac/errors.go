package rbac

import "errors"

var (
	// ErrInvalidRole is returned when a role does not exist.
	ErrInvalidRole = errors.New("rbac.invalid_role")

	// ErrInsufficientPermissions is returned when a permission is not granted.
	ErrInsufficientPermissions = errors.New("rbac.insufficient_permissions")

	// ErrCircularInheritance is returned when roles inherit from each other in a loop
	// or the chain exceeds MaxInheritanceDepth.
	ErrCircularInheritance = errors.New("rbac.circular_inheritance")

	// ErrInvalidRoleFile is returned when a YAML role document cannot be decoded.
	ErrInvalidRoleFile = errors.New("rbac.invalid_role_file")
)

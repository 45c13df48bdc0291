package rbac

// MaxInheritanceDepth bounds role inheritance chains.
const MaxInheritanceDepth = 10

// Role is a named permission set with optional inheritance.
type Role struct {
	// Permissions directly granted to this role.
	Permissions []string `yaml:"permissions"`

	// Inherits lists role names whose permissions are included.
	Inherits []string `yaml:"inherits,omitempty"`
}

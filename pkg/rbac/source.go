package rbac

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type memorySource struct {
	roles map[string]Role
}

// NewInMemRoleSource returns a RoleSource backed by a deep copy of roles.
func NewInMemRoleSource(roles map[string]Role) RoleSource {
	cp := make(map[string]Role, len(roles))
	for name, r := range roles {
		cp[name] = Role{
			Permissions: slices.Clone(r.Permissions),
			Inherits:    slices.Clone(r.Inherits),
		}
	}
	return &memorySource{roles: cp}
}

func (s *memorySource) Load(context.Context) (map[string]Role, error) {
	return s.roles, nil
}

// roleFile is the YAML layout:
//
//	roles:
//	  cashier:
//	    permissions: [pos.sell]
//	  manager:
//	    permissions: [notifications.view, inventory.*]
//	    inherits: [cashier]
type roleFile struct {
	Roles map[string]Role `yaml:"roles"`
}

type yamlSource struct {
	data []byte
	path string
}

// NewYAMLRoleSource decodes roles from an in-memory YAML document.
func NewYAMLRoleSource(data []byte) RoleSource {
	return &yamlSource{data: data}
}

// NewYAMLFileRoleSource reads roles from a YAML file on every Load.
func NewYAMLFileRoleSource(path string) RoleSource {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(context.Context) (map[string]Role, error) {
	data := s.data
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read role file: %w", err)
		}
		data = b
	}

	var f roleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidRoleFile, err)
	}
	return f.Roles, nil
}

package rbac

import (
	"slices"
	"strings"
)

const (
	// Wildcard grants every permission.
	Wildcard = "*"

	// Delimiter separates permission segments, e.g. "notifications.view".
	Delimiter = "."
)

// Matches reports whether granted covers the requested permission.
//
//   - "notifications.view" matches "notifications.view"
//   - "*" matches anything
//   - "notifications.*" matches "notifications.view" but not "notifications"
func Matches(granted, requested string) bool {
	if granted == requested || granted == Wildcard {
		return true
	}
	if prefix, ok := strings.CutSuffix(granted, Delimiter+Wildcard); ok {
		return strings.HasPrefix(requested, prefix+Delimiter)
	}
	return false
}

// Has reports whether any of the granted permissions covers requested.
func Has(granted []string, requested string) bool {
	for _, g := range granted {
		if Matches(g, requested) {
			return true
		}
	}
	return false
}

// ParsePermissions splits a space or comma separated permission string.
func ParsePermissions(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// normalize sorts and de-duplicates permissions. A wildcard swallows the rest.
func normalize(perms []string) []string {
	if slices.Contains(perms, Wildcard) {
		return []string{Wildcard}
	}
	out := slices.Clone(perms)
	slices.Sort(out)
	return slices.Compact(out)
}

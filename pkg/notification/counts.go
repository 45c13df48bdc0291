package notification

import (
	"slices"
)

// Counts is the severity aggregate of a notification collection.
type Counts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Warning  int `json:"warning"`
}

// CountBySeverity computes Counts from scratch. Callers must never patch a
// Counts value incrementally.
func CountBySeverity(list []Notification) Counts {
	c := Counts{Total: len(list)}
	for _, n := range list {
		switch n.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityWarning:
			c.Warning++
		}
	}
	return c
}

// SortBySeverity returns a copy of list ordered by severity (highest first).
// Equal severities keep their relative order, so a newest-first input stays
// newest-first inside each group.
func SortBySeverity(list []Notification) []Notification {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b Notification) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return out
}

// GroupBySeverity splits list into per-severity buckets keeping input order.
func GroupBySeverity(list []Notification) map[Severity][]Notification {
	groups := make(map[Severity][]Notification)
	for _, n := range list {
		s := n.Severity.Normalize()
		groups[s] = append(groups[s], n)
	}
	return groups
}

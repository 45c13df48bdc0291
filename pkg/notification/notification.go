package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is the stable identifier of a notification and the only key used for
// de-duplication. Backends send it either as a JSON string or a JSON number.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, b)
	}
	*id = ID(num.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Type is the category tag of a notification. It drives rendering only.
type Type string

const (
	TypeExpiry         Type = "expiry"
	TypeLowStock       Type = "low_stock"
	TypeSupplierCredit Type = "supplier_credit"
)

// Severity classifies a notification. Unknown values collapse to SeverityDefault.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityDefault  Severity = "default"
)

// Rank orders severities: critical > high > warning > default.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Normalize maps any unrecognised severity to SeverityDefault.
func (s Severity) Normalize() Severity {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityWarning:
		return s
	default:
		return SeverityDefault
	}
}

// Notification is a backend-originated alert. The core only interprets ID and
// Severity; everything else is carried for renderers.
type Notification struct {
	ID        ID
	Type      Type
	Severity  Severity
	Title     string
	Message   string
	CreatedAt time.Time

	// Fields holds every type-specific member (expiry date, quantity, debt
	// figures, ...) verbatim.
	Fields map[string]json.RawMessage
}

// known JSON members; everything else lands in Fields.
var knownFields = map[string]struct{}{
	"id":        {},
	"type":      {},
	"severity":  {},
	"title":     {},
	"message":   {},
	"createdAt": {},
}

type wireNotification struct {
	ID        ID         `json:"id"`
	Type      Type       `json:"type,omitempty"`
	Severity  Severity   `json:"severity,omitempty"`
	Title     string     `json:"title,omitempty"`
	Message   string     `json:"message,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// UnmarshalJSON decodes the known members and keeps the rest in Fields.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var w wireNotification
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*n = Notification{
		ID:       w.ID,
		Type:     w.Type,
		Severity: w.Severity.Normalize(),
		Title:    w.Title,
		Message:  w.Message,
	}
	if w.CreatedAt != nil {
		n.CreatedAt = *w.CreatedAt
	}

	for k, v := range raw {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if n.Fields == nil {
			n.Fields = make(map[string]json.RawMessage, len(raw))
		}
		n.Fields[k] = v
	}

	return nil
}

// MarshalJSON re-emits the known members plus Fields.
func (n Notification) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Fields)+6)
	for k, v := range n.Fields {
		out[k] = v
	}

	out["id"] = n.ID
	if n.Type != "" {
		out["type"] = n.Type
	}
	if n.Severity != "" {
		out["severity"] = n.Severity
	}
	if n.Title != "" {
		out["title"] = n.Title
	}
	if n.Message != "" {
		out["message"] = n.Message
	}
	if !n.CreatedAt.IsZero() {
		out["createdAt"] = n.CreatedAt
	}

	return json.Marshal(out)
}

// Field decodes the type-specific member name into dst.
// Returns ErrFieldNotFound when the member is absent.
func (n Notification) Field(name string, dst any) error {
	raw, ok := n.Fields[name]
	if !ok {
		return ErrFieldNotFound
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode field %q: %w", name, err)
	}
	return nil
}

// Toast is the ephemeral presentation of a notification.
type Toast struct {
	ToastID      string
	Notification Notification
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// NewToastID derives a toast identifier from the notification id and the
// creation instant.
func NewToastID(id ID, at time.Time) string {
	return string(id) + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}

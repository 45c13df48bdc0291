// Package notification defines the alert records pushed by the back-office
// notification backend and the values derived from them.
//
// A Notification is treated as an opaque record with a small known schema:
// ID (the only de-duplication key), Type, Severity, Title and Message. Every
// other JSON member (expiry date, quantity on hand, supplier debt, ...) is kept
// verbatim in Fields and can be decoded by renderers with Field.
//
//	var n notification.Notification
//	_ = json.Unmarshal(payload, &n)
//
//	var qty int
//	if err := n.Field("quantity", &qty); err == nil {
//	    // render low-stock badge
//	}
//
// Counts are always derived with CountBySeverity; they are never maintained
// incrementally.
package notification

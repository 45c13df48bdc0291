// Package toast derives short-lived alerts from newly arrived notifications.
//
// Each genuinely new notification id produces one toast that expires after
// the TTL (10s by default). Its id then stays in a "recently shown" set for a
// further grace period (5s by default), so a redelivery within roughly 15s of
// the first toast is suppressed, while a condition that keeps recurring will
// toast again later. Early dismissal with Remove only hides the toast; it does
// not shorten the suppression window.
//
//	q := toast.New(toast.WithOnChange(func() { redraw() }))
//	if t, ok := q.Add(n); ok {
//	    log.Println("showing", t.ToastID)
//	}
//
// Timers are never cancelled. After Reset, callbacks scheduled earlier find
// nothing to do.
package toast

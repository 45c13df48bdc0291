package toast

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option configures a Queue.
type Option func(*Queue)

// WithTTL sets how long a toast stays visible. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.ttl = d
		}
	}
}

// WithGrace sets how long an id stays suppressed after its toast expired.
// Zero is allowed.
func WithGrace(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.grace = d
		}
	}
}

// WithClock replaces the clock, typically with clockwork.NewFakeClock() in tests.
func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

// WithOnChange registers a callback invoked, outside the queue lock, after
// every change of the active toast list.
func WithOnChange(fn func()) Option {
	return func(q *Queue) {
		q.onChange = fn
	}
}

// WithMaxToasts caps the visible toasts; the oldest is evicted first.
// Zero means unbounded.
func WithMaxToasts(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxToasts = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

package notifystore

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/storedesk/notifykit/pkg/snapshot"
	"github.com/storedesk/notifykit/pkg/toast"
)

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics registers the store's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.metrics = newMetrics(reg)
	}
}

// WithSnapshot saves the collection to store under key after every
// mutation and seeds from it on Start.
func WithSnapshot(store snapshot.Store, key string) Option {
	return func(s *Store) {
		if store != nil && key != "" {
			s.snapshots = store
			s.snapshotKey = key
		}
	}
}

// WithToastOptions configures the embedded toast queue.
func WithToastOptions(opts ...toast.Option) Option {
	return func(s *Store) {
		s.toastOpts = append(s.toastOpts, opts...)
	}
}

// WithEventBuffer sets how many stream events may queue before the stream's
// read loop waits for the store (default 64).
func WithEventBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.eventBuffer = n
		}
	}
}

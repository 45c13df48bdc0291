package toast

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notification"
)

const (
	DefaultTTL   = 10 * time.Second
	DefaultGrace = 5 * time.Second
)

// Queue holds the active toasts and the recently-shown id set.
// All methods are safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	toasts []notification.Toast
	shown  map[notification.ID]struct{}
	// gen invalidates timers scheduled before the last Reset.
	gen uint64

	ttl       time.Duration
	grace     time.Duration
	maxToasts int
	clock     clockwork.Clock
	onChange  func()
	logger    *slog.Logger
}

// New creates a toast queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		shown:  make(map[notification.ID]struct{}),
		ttl:    DefaultTTL,
		grace:  DefaultGrace,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add shows a toast for n unless its id was shown recently.
// The second result reports whether a toast was created.
func (q *Queue) Add(n notification.Notification) (notification.Toast, bool) {
	q.mu.Lock()
	if _, seen := q.shown[n.ID]; seen {
		q.mu.Unlock()
		q.logger.LogAttrs(context.Background(), slog.LevelDebug, "Toast suppressed, shown recently",
			logger.Component("toast"),
			logger.NotificationID(string(n.ID)),
		)
		return notification.Toast{}, false
	}

	now := q.clock.Now()
	t := notification.Toast{
		ToastID:      notification.NewToastID(n.ID, now),
		Notification: n,
		CreatedAt:    now,
		ExpiresAt:    now.Add(q.ttl),
	}
	q.shown[n.ID] = struct{}{}
	q.toasts = append(q.toasts, t)
	if q.maxToasts > 0 && len(q.toasts) > q.maxToasts {
		q.toasts = slices.Clone(q.toasts[len(q.toasts)-q.maxToasts:])
	}
	gen := q.gen
	q.clock.AfterFunc(q.ttl, func() { q.expire(gen, t.ToastID, n.ID) })
	q.mu.Unlock()

	q.logger.LogAttrs(context.Background(), slog.LevelDebug, "Toast added",
		logger.Component("toast"),
		logger.ToastID(t.ToastID),
		logger.Severity(string(n.Severity)),
	)
	q.changed()
	return t, true
}

// expire is the TTL callback: it drops the toast and schedules eviction of
// the id from the shown set after the grace delay.
func (q *Queue) expire(gen uint64, toastID string, id notification.ID) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	removed := q.removeLocked(toastID)
	q.clock.AfterFunc(q.grace, func() { q.forget(gen, id) })
	q.mu.Unlock()

	if removed {
		q.changed()
	}
}

func (q *Queue) forget(gen uint64, id notification.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return
	}
	delete(q.shown, id)
}

// Remove dismisses a toast early. The id stays in the shown set until the
// scheduled expiry path evicts it.
func (q *Queue) Remove(toastID string) bool {
	q.mu.Lock()
	removed := q.removeLocked(toastID)
	q.mu.Unlock()

	if removed {
		q.changed()
	}
	return removed
}

func (q *Queue) removeLocked(toastID string) bool {
	i := slices.IndexFunc(q.toasts, func(t notification.Toast) bool { return t.ToastID == toastID })
	if i < 0 {
		return false
	}
	q.toasts = slices.Delete(q.toasts, i, i+1)
	return true
}

// List returns the active toasts, oldest first.
func (q *Queue) List() []notification.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.toasts)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// Shown reports whether id is inside its suppression window.
func (q *Queue) Shown(id notification.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.shown[id]
	return ok
}

// Reset drops all toasts and the shown set. Timers already scheduled still
// fire but do nothing.
func (q *Queue) Reset() {
	q.mu.Lock()
	had := len(q.toasts) > 0
	q.toasts = nil
	clear(q.shown)
	q.gen++
	q.mu.Unlock()

	if had {
		q.changed()
	}
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange()
	}
}

package notifystore

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/storedesk/notifykit/pkg/broadcast"
	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/realtime"
	"github.com/storedesk/notifykit/pkg/session"
	"github.com/storedesk/notifykit/pkg/snapshot"
	"github.com/storedesk/notifykit/pkg/toast"
)

// Source is the event stream the store consumes. *realtime.Client implements it.
type Source interface {
	OnAny(h realtime.Handler) *realtime.Subscription
	Off(sub *realtime.Subscription)
	Connect(ctx context.Context, sess session.Session) error
	IsConnected() bool
	FetchNotifications(ctx context.Context)
	MarkRead(ctx context.Context, id notification.ID)
	Close() error
}

type boundEvent struct {
	binding uint64
	ev      realtime.Event
}

// State is an immutable view of the store.
type State struct {
	Notifications []notification.Notification
	Toasts        []notification.Toast
	Counts        notification.Counts
	Connected     bool
}

// Store is the canonical notification collection of one console session.
type Store struct {
	mu        sync.RWMutex
	items     []notification.Notification
	ids       map[notification.ID]struct{}
	counts    notification.Counts
	connected bool

	toasts *toast.Queue
	feed   *broadcast.Memory[State]
	events chan boundEvent

	bindMu  sync.Mutex
	bindSeq uint64
	bound   uint64
	source  Source
	sub     *realtime.Subscription
	quit    chan struct{}
	stopRun context.CancelFunc
	runDone chan struct{}

	// persistMu orders snapshot writes; each write saves the collection as
	// it is when the write starts.
	persistMu   sync.Mutex
	snapshots   snapshot.Store
	snapshotKey string

	eventBuffer int
	toastOpts   []toast.Option
	logger      *slog.Logger
	metrics     *metrics
}

// New creates an empty, unbound store.
func New(opts ...Option) *Store {
	s := &Store{
		ids:         make(map[notification.ID]struct{}),
		feed:        broadcast.NewMemory[State](1),
		eventBuffer: 64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("notifystore"))
	s.events = make(chan boundEvent, s.eventBuffer)

	toastOpts := append([]toast.Option{toast.WithLogger(s.logger)}, s.toastOpts...)
	toastOpts = append(toastOpts, toast.WithOnChange(s.publish))
	s.toasts = toast.New(toastOpts...)
	return s
}

// SetInitialNotifications replaces the collection with list. No toasts are
// produced. Repeated ids inside list keep their first occurrence.
func (s *Store) SetInitialNotifications(list []notification.Notification) {
	s.seed(context.Background(), list, "manual")
}

func (s *Store) seed(ctx context.Context, list []notification.Notification, source string) {
	items := dedupe(list)

	s.mu.Lock()
	s.items = items
	s.ids = indexOf(items)
	s.counts = notification.CountBySeverity(items)
	counts := s.counts
	s.mu.Unlock()

	s.metrics.seeded(source, counts)
	s.logger.LogAttrs(ctx, slog.LevelDebug, "Notifications replaced",
		slog.String("source", source),
		logger.Count(len(items)),
	)
	if source != "snapshot" {
		s.persist(ctx)
	}
	s.publish()
}

// AddNotification prepends n unless its id is already present, and enqueues
// a toast for it. Reports whether n was added.
func (s *Store) AddNotification(n notification.Notification) bool {
	ctx := context.Background()

	s.mu.Lock()
	if _, exists := s.ids[n.ID]; exists {
		s.mu.Unlock()
		s.metrics.duplicate()
		s.logger.LogAttrs(ctx, slog.LevelDebug, "Duplicate notification ignored",
			logger.NotificationID(string(n.ID)),
		)
		return false
	}
	items := make([]notification.Notification, 0, len(s.items)+1)
	items = append(items, n)
	items = append(items, s.items...)
	s.items = items
	s.ids[n.ID] = struct{}{}
	s.counts = notification.CountBySeverity(items)
	counts := s.counts
	s.mu.Unlock()

	s.metrics.added(counts)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "Notification received",
		logger.NotificationID(string(n.ID)),
		logger.Severity(string(n.Severity)),
		slog.String("type", string(n.Type)),
	)
	s.persist(ctx)

	// The queue publishes through its change hook; a suppressed toast does not.
	if _, shown := s.toasts.Add(n); !shown {
		s.publish()
	}
	return true
}

// ClearNotifications empties the collection and deletes the saved snapshot.
func (s *Store) ClearNotifications() {
	s.clear()
	s.persist(context.Background())
	s.publish()
}

func (s *Store) clear() {
	s.mu.Lock()
	s.items = nil
	clear(s.ids)
	s.counts = notification.Counts{}
	s.mu.Unlock()
	s.metrics.setCounts(notification.Counts{})
}

// RemoveToast dismisses a toast early.
func (s *Store) RemoveToast(toastID string) bool {
	return s.toasts.Remove(toastID)
}

// State returns a consistent snapshot of the collection and its counts,
// together with the active toasts and the connection flag.
func (s *Store) State() State {
	s.mu.RLock()
	st := State{
		Notifications: slices.Clone(s.items),
		Counts:        s.counts,
		Connected:     s.connected,
	}
	s.mu.RUnlock()

	if st.Notifications == nil {
		st.Notifications = []notification.Notification{}
	}
	st.Toasts = s.toasts.List()
	return st
}

// Notifications returns the collection, newest pushes first.
func (s *Store) Notifications() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.items == nil {
		return []notification.Notification{}
	}
	return slices.Clone(s.items)
}

func (s *Store) Counts() notification.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

func (s *Store) Toasts() []notification.Toast {
	return s.toasts.List()
}

// IsConnected mirrors the stream's connection state as seen through events.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Subscribe streams State after every change. A slow reader skips
// intermediate states and always ends on the latest one.
func (s *Store) Subscribe(ctx context.Context) broadcast.Subscription[State] {
	return s.feed.Subscribe(ctx)
}

func (s *Store) setConnected(ctx context.Context, up bool) {
	s.mu.Lock()
	changed := s.connected != up
	s.connected = up
	s.mu.Unlock()

	if !changed {
		return
	}
	s.metrics.setConnected(up)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "Notification stream status changed",
		slog.Bool("connected", up),
	)
	s.publish()
}

func (s *Store) publish() {
	s.feed.Publish(s.State())
}

// persist mirrors the current collection into the snapshot store. An empty
// collection deletes the snapshot.
func (s *Store) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	items := slices.Clone(s.items)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if len(items) == 0 {
		if err := s.snapshots.Delete(ctx, s.snapshotKey); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to delete notification snapshot", logger.Error(err))
		}
		return
	}
	if err := s.snapshots.Save(ctx, s.snapshotKey, items); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to save notification snapshot", logger.Error(err))
	}
}

func dedupe(list []notification.Notification) []notification.Notification {
	out := make([]notification.Notification, 0, len(list))
	seen := make(map[notification.ID]struct{}, len(list))
	for _, n := range list {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

func indexOf(items []notification.Notification) map[notification.ID]struct{} {
	ids := make(map[notification.ID]struct{}, len(items))
	for _, n := range items {
		ids[n.ID] = struct{}{}
	}
	return ids
}

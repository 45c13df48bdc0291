package notifystore

import (
	"context"
	"log/slog"
	"time"

	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/realtime"
	"github.com/storedesk/notifykit/pkg/session"
)

// Bind subscribes the store to src with a single handler that forwards
// events into the store's queue. Reports false when already bound.
func (s *Store) Bind(src Source) bool {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if s.sub != nil {
		return false
	}
	quit := make(chan struct{})
	s.bindSeq++
	id := s.bindSeq
	s.bound = id
	s.source = src
	s.quit = quit
	s.sub = src.OnAny(func(ev realtime.Event) {
		select {
		case s.events <- boundEvent{binding: id, ev: ev}:
		case <-quit:
		}
	})
	return true
}

// Unbind removes the handler installed by Bind and returns the source it
// was bound to, or nil.
func (s *Store) Unbind() Source {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	if s.sub == nil {
		return nil
	}
	src := s.source
	src.Off(s.sub)
	close(s.quit)
	s.source, s.sub, s.quit = nil, nil, nil
	s.bound = 0
	return src
}

// Run applies queued events until ctx is done. Start runs it automatically;
// call it directly only when driving the store with Bind. Events forwarded
// by an earlier binding are discarded.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case be := <-s.events:
			if !s.isBound(be.binding) {
				continue
			}
			s.apply(ctx, be.ev)
		}
	}
}

func (s *Store) isBound(id uint64) bool {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	return id != 0 && id == s.bound
}

func (s *Store) apply(ctx context.Context, ev realtime.Event) {
	switch e := ev.(type) {
	case realtime.Connected:
		s.setConnected(ctx, true)
	case realtime.Disconnected:
		s.setConnected(ctx, false)
	case realtime.NotificationReceived:
		s.AddNotification(e.Notification)
	case realtime.InitialLoad:
		s.seed(ctx, e.Notifications, "initial")
	case realtime.Refresh:
		s.seed(ctx, e.Notifications, "refresh")
	case realtime.ErrorReported:
		if e.PermissionDenied() {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Notification stream reported a permission error",
				slog.String("code", e.Code),
				slog.String("message", e.Message),
			)
			return
		}
		s.logger.LogAttrs(ctx, slog.LevelError, "Notification stream reported an error",
			slog.String("code", e.Code),
			slog.String("message", e.Message),
		)
	default:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Unhandled stream event",
			logger.Event(string(ev.Name())),
		)
	}
}

// Start wires the store to src for one session: it binds, starts the event
// loop, seeds from the saved snapshot, connects and requests the full list.
// Failures are logged and leave the store offline; they are never returned.
func (s *Store) Start(ctx context.Context, src Source, sess session.Session) {
	if !s.Bind(src) {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "Store already started")
		return
	}
	s.startRun(ctx)
	s.preload(ctx)

	if err := src.Connect(ctx, sess); err != nil {
		if realtime.IsPermissionDenied(err) {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Real-time notifications unavailable, permission denied",
				logger.UserID(sess.UserID),
				logger.Error(err),
			)
			return
		}
		s.logger.LogAttrs(ctx, slog.LevelError, "Failed to connect notification stream",
			logger.UserID(sess.UserID),
			logger.Error(err),
		)
		return
	}

	if src.IsConnected() {
		src.FetchNotifications(ctx)
	}
}

// Stop ends the session: it unbinds, stops the event loop, clears the
// in-memory collection and toasts, and closes the source. The saved
// snapshot is kept; use ClearNotifications on logout to drop it too.
func (s *Store) Stop() {
	src := s.Unbind()
	s.stopLoop()

drain:
	for {
		select {
		case <-s.events:
		default:
			break drain
		}
	}

	s.clear()
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	s.metrics.setConnected(false)
	s.toasts.Reset()
	s.publish()

	if src != nil {
		if err := src.Close(); err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "Failed to close notification stream", logger.Error(err))
		}
	}
}

// Close stops the store and ends every state subscription.
func (s *Store) Close() error {
	s.Stop()
	return s.feed.Close()
}

// MarkRead forwards a read receipt to the backend. Local state is unchanged.
func (s *Store) MarkRead(ctx context.Context, id notification.ID) {
	s.bindMu.Lock()
	src := s.source
	s.bindMu.Unlock()

	if src == nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Mark read ignored, store not started",
			logger.NotificationID(string(id)),
		)
		return
	}
	src.MarkRead(ctx, id)
}

func (s *Store) startRun(ctx context.Context) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	if s.stopRun != nil {
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.stopRun, s.runDone = cancel, done
	go func() {
		defer close(done)
		_ = s.Run(runCtx)
	}()
}

func (s *Store) stopLoop() {
	s.bindMu.Lock()
	cancel, done := s.stopRun, s.runDone
	s.stopRun, s.runDone = nil, nil
	s.bindMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Store) preload(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	snap, ok, err := s.snapshots.Load(lctx, s.snapshotKey)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to load notification snapshot", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	if len(s.Notifications()) > 0 {
		return
	}
	s.seed(ctx, snap.Notifications, "snapshot")
	s.logger.LogAttrs(ctx, slog.LevelInfo, "Showing cached notifications until the stream delivers",
		logger.Count(len(snap.Notifications)),
		logger.Duration(time.Since(snap.SavedAt)),
	)
}

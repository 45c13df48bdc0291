package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storedesk/notifykit/pkg/config"
	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/realtime"
	"github.com/storedesk/notifykit/pkg/realtime/realtimetest"
	"github.com/storedesk/notifykit/pkg/session"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

var viewer = session.Session{
	Token:       "tok-123",
	UserID:      "u-1",
	Permissions: []string{session.PermissionViewNotifications},
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) handle(ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

func (r *recorder) names() []realtime.EventName {
	var names []realtime.EventName
	for _, ev := range r.all() {
		names = append(names, ev.Name())
	}
	return names
}

func (r *recorder) count(name realtime.EventName) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Name() == name {
			n++
		}
	}
	return n
}

func newClient(t *testing.T, resolver config.Resolver, opts ...realtime.Option) (*realtime.Client, *recorder) {
	t.Helper()
	opts = append([]realtime.Option{
		realtime.WithLogger(logger.Discard()),
		realtime.WithReconnect(3, 10*time.Millisecond, 20*time.Millisecond),
	}, opts...)
	c := realtime.New(resolver, opts...)
	rec := &recorder{}
	c.OnAny(rec.handle)
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestClient_ConnectGate(t *testing.T) {
	g := realtimetest.New(t)

	tests := []struct {
		name string
		sess session.Session
	}{
		{name: "no token", sess: session.Session{Permissions: viewer.Permissions}},
		{name: "blank token", sess: session.Session{Token: "  ", Permissions: viewer.Permissions}},
		{name: "no permission", sess: session.Session{Token: "tok", Permissions: []string{"products.view"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newClient(t, config.StaticResolver(g.URL()))
			require.NoError(t, c.Connect(context.Background(), tt.sess))
			assert.Equal(t, realtime.StateDisconnected, c.State())
			assert.Empty(t, g.Handshakes())
		})
	}

	t.Run("custom permission checker", func(t *testing.T) {
		c, _ := newClient(t, config.StaticResolver(g.URL()),
			realtime.WithPermissionChecker(func(session.Session) bool { return true }),
		)
		require.NoError(t, c.Connect(context.Background(), session.Session{Token: "tok"}))
		assert.True(t, c.IsConnected())
	})
}

func TestClient_Connect(t *testing.T) {
	t.Run("presents token and emits connected", func(t *testing.T) {
		g := realtimetest.New(t, realtimetest.WithToken(viewer.Token))
		c, rec := newClient(t, config.StaticResolver(g.URL()))

		require.NoError(t, c.Connect(context.Background(), viewer))
		assert.True(t, c.IsConnected())
		assert.NotEmpty(t, c.ConnectionID())

		hs := g.Handshakes()
		require.Len(t, hs, 1)
		assert.Equal(t, viewer.Token, hs[0].HeaderToken)
		assert.Equal(t, viewer.Token, hs[0].QueryToken)

		require.Eventually(t, func() bool { return rec.count(realtime.EventConnect) == 1 }, waitFor, tick)
		ev := rec.all()[0].(realtime.Connected)
		assert.False(t, ev.Reconnect)
		assert.Equal(t, g.URL(), ev.Endpoint)
	})

	t.Run("idempotent while connected", func(t *testing.T) {
		g := realtimetest.New(t)
		c, _ := newClient(t, config.StaticResolver(g.URL()))

		require.NoError(t, c.Connect(context.Background(), viewer))
		require.NoError(t, c.Connect(context.Background(), viewer))
		assert.Len(t, g.Handshakes(), 1)
	})

	t.Run("resolve failure", func(t *testing.T) {
		resolver := config.ResolverFunc(func(context.Context) (config.Endpoint, error) {
			return config.Endpoint{}, errors.New("no runtime config")
		})
		c, _ := newClient(t, resolver)

		err := c.Connect(context.Background(), viewer)
		require.Error(t, err)
		assert.ErrorIs(t, err, realtime.ErrConfigUnavailable)
		assert.Equal(t, realtime.StateDisconnected, c.State())
	})

	t.Run("resolves through runtime config", func(t *testing.T) {
		g := realtimetest.New(t)
		c, _ := newClient(t, config.NewHTTPResolver(g.Origin()))

		require.NoError(t, c.Connect(context.Background(), viewer))
		assert.True(t, c.IsConnected())
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		g := realtimetest.New(t, realtimetest.WithToken("other"))
		c, _ := newClient(t, config.StaticResolver(g.URL()))

		err := c.Connect(context.Background(), viewer)
		var he *realtime.HandshakeError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
		assert.Equal(t, "unauthorized", he.Code)
		assert.False(t, realtime.IsPermissionDenied(err))
		assert.Equal(t, realtime.StateDisconnected, c.State())
	})

	t.Run("permission rejection", func(t *testing.T) {
		g := realtimetest.New(t)
		g.Reject(&realtimetest.Rejection{Status: http.StatusForbidden, Code: "permission_denied", Message: "not allowed"})
		c, _ := newClient(t, config.StaticResolver(g.URL()))

		err := c.Connect(context.Background(), viewer)
		require.Error(t, err)
		assert.ErrorIs(t, err, realtime.ErrHandshakeRejected)
		assert.True(t, realtime.IsPermissionDenied(err))
	})

	t.Run("connect after close", func(t *testing.T) {
		g := realtimetest.New(t)
		c, _ := newClient(t, config.StaticResolver(g.URL()))
		require.NoError(t, c.Close())

		assert.ErrorIs(t, c.Connect(context.Background(), viewer), realtime.ErrClosed)
	})
}

func TestClient_Events(t *testing.T) {
	g := realtimetest.New(t)
	c, rec := newClient(t, config.StaticResolver(g.URL()))
	require.NoError(t, c.Connect(context.Background(), viewer))
	require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

	ctx := context.Background()
	require.NoError(t, g.Push(ctx, realtime.EventInitial, []map[string]any{
		{"id": 1, "severity": "warning", "title": "Milk expires tomorrow"},
	}))
	require.NoError(t, g.PushRaw(ctx, []byte(`not json`)))
	require.NoError(t, g.Push(ctx, "notification:unknown", map[string]any{}))
	require.NoError(t, g.Push(ctx, realtime.EventNotification, map[string]any{
		"id": "2", "severity": "critical", "type": "low_stock", "quantity": 3,
	}))
	require.NoError(t, g.Push(ctx, realtime.EventRefresh, map[string]any{"notifications": []any{}}))
	require.NoError(t, g.Push(ctx, realtime.EventError, map[string]any{"code": "forbidden", "message": "nope"}))

	require.Eventually(t, func() bool { return len(rec.all()) == 5 }, waitFor, tick)
	assert.Equal(t, []realtime.EventName{
		realtime.EventConnect,
		realtime.EventInitial,
		realtime.EventNotification,
		realtime.EventRefresh,
		realtime.EventError,
	}, rec.names())

	events := rec.all()
	initial := events[1].(realtime.InitialLoad)
	require.Len(t, initial.Notifications, 1)
	assert.Equal(t, notification.ID("1"), initial.Notifications[0].ID)

	pushed := events[2].(realtime.NotificationReceived)
	assert.Equal(t, notification.SeverityCritical, pushed.Notification.Severity)
	var qty int
	require.NoError(t, pushed.Notification.Field("quantity", &qty))
	assert.Equal(t, 3, qty)

	assert.Empty(t, events[3].(realtime.Refresh).Notifications)
	assert.True(t, events[4].(realtime.ErrorReported).PermissionDenied())
}

func TestClient_OnOff(t *testing.T) {
	g := realtimetest.New(t)
	c, _ := newClient(t, config.StaticResolver(g.URL()))

	var mu sync.Mutex
	var got []notification.ID
	sub := c.On(realtime.EventNotification, func(ev realtime.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.(realtime.NotificationReceived).Notification.ID)
	})
	c.On(realtime.EventNotification, func(realtime.Event) { panic("handler bug") })

	require.NoError(t, c.Connect(context.Background(), viewer))
	require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

	ctx := context.Background()
	require.NoError(t, g.Push(ctx, realtime.EventInitial, []any{}))
	require.NoError(t, g.Push(ctx, realtime.EventNotification, map[string]any{"id": "a"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, waitFor, tick)

	c.Off(sub)
	c.Off(sub)
	c.Off(nil)

	require.NoError(t, g.Push(ctx, realtime.EventNotification, map[string]any{"id": "b"}))
	// A later subscriber observes "b", so the removed one had its chance.
	seen := make(chan struct{})
	var once sync.Once
	c.On(realtime.EventNotification, func(realtime.Event) { once.Do(func() { close(seen) }) })
	require.NoError(t, g.Push(ctx, realtime.EventNotification, map[string]any{"id": "c"}))
	select {
	case <-seen:
	case <-time.After(waitFor):
		t.Fatal("late subscriber never called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []notification.ID{"a"}, got)
}

func TestClient_Send(t *testing.T) {
	t.Run("offline commands are dropped", func(t *testing.T) {
		g := realtimetest.New(t)
		reg := prometheus.NewRegistry()
		c, _ := newClient(t, config.StaticResolver(g.URL()), realtime.WithMetrics(reg))

		assert.NotPanics(t, func() { c.FetchNotifications(context.Background()) })
		assert.Equal(t, 1.0, counterValue(t, reg, "notifykit_realtime_commands_total",
			map[string]string{"command": string(realtime.CommandFetch), "result": "dropped"}))

		require.NoError(t, c.Connect(context.Background(), viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, g.Commands())
	})

	t.Run("commands reach the gateway", func(t *testing.T) {
		g := realtimetest.New(t)
		reg := prometheus.NewRegistry()
		c, _ := newClient(t, config.StaticResolver(g.URL()), realtime.WithMetrics(reg))
		require.NoError(t, c.Connect(context.Background(), viewer))

		c.FetchNotifications(context.Background())
		c.MarkRead(context.Background(), "n-7")

		require.Eventually(t, func() bool { return len(g.Commands()) == 2 }, waitFor, tick)
		cmds := g.Commands()
		assert.Equal(t, realtime.CommandFetch, cmds[0].Name)
		assert.Empty(t, cmds[0].Payload)
		assert.Equal(t, realtime.CommandMarkRead, cmds[1].Name)
		assert.JSONEq(t, `{"id":"n-7"}`, string(cmds[1].Payload))

		assert.Equal(t, 1.0, counterValue(t, reg, "notifykit_realtime_commands_total",
			map[string]string{"command": string(realtime.CommandMarkRead), "result": "sent"}))
		assert.Equal(t, 1.0, counterValue(t, reg, "notifykit_realtime_connect_attempts_total", nil))
	})
}

func TestClient_Disconnect(t *testing.T) {
	g := realtimetest.New(t)
	c, rec := newClient(t, config.StaticResolver(g.URL()))
	require.NoError(t, c.Connect(context.Background(), viewer))
	require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, realtime.StateDisconnected, c.State())
	assert.Empty(t, c.ConnectionID())

	require.Eventually(t, func() bool { return rec.count(realtime.EventDisconnect) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return g.Peers() == 0 }, waitFor, tick)

	var dis realtime.Disconnected
	for _, ev := range rec.all() {
		if d, ok := ev.(realtime.Disconnected); ok {
			dis = d
		}
	}
	assert.NoError(t, dis.Err)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, g.Handshakes(), 1, "explicit disconnect must not reconnect")

	require.NoError(t, c.Connect(context.Background(), viewer))
	assert.True(t, c.IsConnected())
}

// lingeringConn keeps its read loop alive for a while after Close, like a
// socket waiting for the peer's close frame.
type lingeringConn struct {
	closed chan struct{}
	once   sync.Once
	linger time.Duration
}

func newLingeringConn(linger time.Duration) *lingeringConn {
	return &lingeringConn{closed: make(chan struct{}), linger: linger}
}

func (c *lingeringConn) Read(context.Context) ([]byte, error) {
	<-c.closed
	time.Sleep(c.linger)
	return nil, errors.New("use of closed connection")
}

func (c *lingeringConn) Write(context.Context, []byte) error { return nil }

func (c *lingeringConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestClient_DisconnectThenConnect(t *testing.T) {
	dialer := realtime.DialerFunc(func(context.Context, string, string) (realtime.Conn, error) {
		return newLingeringConn(50 * time.Millisecond), nil
	})
	c, rec := newClient(t, config.StaticResolver("ws://gateway.test/ws"), realtime.WithDialer(dialer))

	require.NoError(t, c.Connect(context.Background(), viewer))
	require.Eventually(t, func() bool { return rec.count(realtime.EventConnect) == 1 }, waitFor, tick)

	c.Disconnect()
	assert.Equal(t, 1, rec.count(realtime.EventDisconnect), "disconnect is delivered before Disconnect returns")

	require.NoError(t, c.Connect(context.Background(), viewer))
	require.Eventually(t, func() bool { return rec.count(realtime.EventConnect) == 2 }, waitFor, tick)

	assert.Equal(t, []realtime.EventName{
		realtime.EventConnect,
		realtime.EventDisconnect,
		realtime.EventConnect,
	}, rec.names())
	events := rec.all()
	assert.IsType(t, realtime.Connected{}, events[len(events)-1])
	assert.True(t, c.IsConnected())
}

func TestClient_Reconnect(t *testing.T) {
	t.Run("redials after a drop", func(t *testing.T) {
		g := realtimetest.New(t)
		reg := prometheus.NewRegistry()
		c, rec := newClient(t, config.StaticResolver(g.URL()), realtime.WithMetrics(reg))
		require.NoError(t, c.Connect(context.Background(), viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)
		firstID := c.ConnectionID()

		g.Drop()

		require.Eventually(t, func() bool { return rec.count(realtime.EventConnect) == 2 }, waitFor, tick)
		assert.Equal(t, []realtime.EventName{
			realtime.EventConnect,
			realtime.EventDisconnect,
			realtime.EventConnect,
		}, rec.names())

		events := rec.all()
		assert.Error(t, events[1].(realtime.Disconnected).Err)
		assert.True(t, events[2].(realtime.Connected).Reconnect)

		assert.True(t, c.IsConnected())
		assert.NotEqual(t, firstID, c.ConnectionID())
		assert.Equal(t, 1.0, counterValue(t, reg, "notifykit_realtime_reconnects_total",
			map[string]string{"result": "success"}))
	})

	t.Run("first redial waits the initial delay", func(t *testing.T) {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		g := realtimetest.New(t)
		c, rec := newClient(t, config.StaticResolver(g.URL()),
			realtime.WithClock(clock),
			realtime.WithReconnect(3, time.Second, 2*time.Second),
		)
		require.NoError(t, c.Connect(ctx, viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

		g.Drop()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		assert.Equal(t, realtime.StateConnecting, c.State())
		assert.Len(t, g.Handshakes(), 1)

		clock.Advance(time.Second)

		require.Eventually(t, func() bool { return rec.count(realtime.EventConnect) == 2 }, waitFor, tick)
		assert.Len(t, g.Handshakes(), 2)
		assert.True(t, c.IsConnected())
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		g := realtimetest.New(t)
		c, rec := newClient(t, config.StaticResolver(g.URL()),
			realtime.WithClock(clock),
			realtime.WithReconnect(3, time.Second, 2*time.Second),
		)
		require.NoError(t, c.Connect(ctx, viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

		g.Reject(&realtimetest.Rejection{Status: http.StatusServiceUnavailable, Message: "maintenance"})
		g.Drop()

		// Initial delay plus one wait between each of the three dials. The
		// jittered interval never exceeds 1.5x the cap.
		for range 3 {
			require.NoError(t, clock.BlockUntilContext(ctx, 1))
			clock.Advance(3 * time.Second)
		}

		require.Eventually(t, func() bool { return c.State() == realtime.StateDisconnected }, waitFor, tick)
		assert.Len(t, g.Handshakes(), 1+3)
		assert.Equal(t, 1, rec.count(realtime.EventConnect))
		assert.Equal(t, 1, rec.count(realtime.EventDisconnect))

		g.Reject(nil)
		assert.False(t, c.IsConnected(), "stays disconnected until the next Connect")

		require.NoError(t, c.Connect(ctx, viewer))
		assert.True(t, c.IsConnected())
	})

	t.Run("unauthorized handshake stops retrying", func(t *testing.T) {
		g := realtimetest.New(t)
		c, _ := newClient(t, config.StaticResolver(g.URL()))
		require.NoError(t, c.Connect(context.Background(), viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

		g.Reject(&realtimetest.Rejection{Status: http.StatusForbidden, Code: "forbidden"})
		g.Drop()

		require.Eventually(t, func() bool { return c.State() == realtime.StateDisconnected }, waitFor, tick)
		assert.Len(t, g.Handshakes(), 2)
	})

	t.Run("disconnect during backoff", func(t *testing.T) {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		g := realtimetest.New(t)
		c, rec := newClient(t, config.StaticResolver(g.URL()),
			realtime.WithClock(clock),
			realtime.WithReconnect(5, time.Second, time.Second),
		)
		require.NoError(t, c.Connect(ctx, viewer))
		require.Eventually(t, func() bool { return g.Peers() == 1 }, waitFor, tick)

		g.Drop()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))

		c.Disconnect()
		clock.Advance(time.Minute)

		assert.Equal(t, realtime.StateDisconnected, c.State())
		assert.Len(t, g.Handshakes(), 1)
		assert.Equal(t, 1, rec.count(realtime.EventDisconnect))
	})
}

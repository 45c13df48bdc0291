package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/storedesk/notifykit/pkg/config"
	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/session"
)

// ConnState is the lifecycle state of a Client.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives events. Handlers run on the client's read goroutine, in
// wire order, and must not block for long.
type Handler func(Event)

// Subscription identifies a registered handler for Off.
type Subscription struct {
	name EventName
	any  bool
	fn   Handler
}

// Client owns the single notification stream of a console session.
type Client struct {
	resolver   config.Resolver
	dialer     Dialer
	httpClient *http.Client
	cfg        Config
	permitted  session.PermissionChecker
	logger     *slog.Logger
	metrics    *metrics
	clock      clockwork.Clock

	mu       sync.Mutex
	state    ConnState
	conn     Conn
	connID   string
	endpoint string
	sess     session.Session
	cancel   context.CancelFunc
	// done closes when the run goroutine of the current generation returns.
	done chan struct{}
	// gen changes on every explicit Disconnect; goroutines started for an
	// older generation stop touching shared state.
	gen    uint64
	closed bool

	hmu  sync.RWMutex
	subs []*Subscription
}

// New creates a disconnected client. The endpoint is resolved through
// resolver on every connect and reconnect.
func New(resolver config.Resolver, opts ...Option) *Client {
	c := &Client{
		resolver:  resolver,
		cfg:       DefaultConfig(),
		permitted: session.CanViewNotifications,
		logger:    slog.Default(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = WebsocketDialer{
			HTTPClient: c.httpClient,
			Timeout:    c.cfg.DialTimeout,
			ReadLimit:  c.cfg.ReadLimit,
		}
	}
	c.logger = c.logger.With(logger.Component("realtime"))
	return c
}

// Connect opens the stream for sess. It is a silent no-op when the session
// has no token or lacks permission, and when a connection is already live or
// being established. Resolve failures wrap ErrConfigUnavailable; handshake
// rejections are *HandshakeError. A failed attempt leaves the client
// disconnected and does not retry.
func (c *Client) Connect(ctx context.Context, sess session.Session) error {
	if !sess.HasToken() {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "Realtime connect skipped, no session token")
		return nil
	}
	if !c.permitted(sess) {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "Realtime connect skipped, session may not view notifications",
			logger.UserID(sess.UserID),
		)
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	c.metrics.connectAttempt()
	conn, endpoint, err := c.dial(ctx, sess.Token)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrConnectAborted
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.conn = conn
	c.state = StateConnected
	c.connID = uuid.NewString()
	c.endpoint = endpoint
	c.sess = sess
	c.cancel = cancel
	c.done = done
	connID := c.connID
	c.mu.Unlock()

	c.metrics.setConnected(true)
	c.logger.LogAttrs(ctx, slog.LevelInfo, "Realtime connected",
		logger.ConnectionID(connID),
		logger.Endpoint(endpoint),
		logger.UserID(sess.UserID),
	)

	go func() {
		defer close(done)
		c.run(loopCtx, gen, conn, endpoint)
	}()
	return nil
}

// Disconnect closes the stream with a normal closure. Handlers receive
// Disconnected before Disconnect returns; no reconnect follows. It must not
// be called from a Handler.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn, cancel, done, connID := c.conn, c.cancel, c.done, c.connID
	c.conn, c.cancel, c.done = nil, nil, nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.metrics.setConnected(false)
	// Close before cancelling: a cancelled read aborts the socket instead of
	// completing the close handshake.
	if conn != nil {
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	// The old generation's events must reach handlers before any event of a
	// following Connect.
	if done != nil {
		<-done
	}
	c.logger.LogAttrs(context.Background(), slog.LevelInfo, "Realtime disconnected",
		logger.ConnectionID(connID),
	)
}

// Close ends the session: it disconnects, drops every handler and rejects
// further Connect calls with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()

	c.hmu.Lock()
	c.subs = nil
	c.hmu.Unlock()
	return nil
}

// On registers h for events named name.
func (c *Client) On(name EventName, h Handler) *Subscription {
	return c.subscribe(&Subscription{name: name, fn: h})
}

// OnAny registers h for every event.
func (c *Client) OnAny(h Handler) *Subscription {
	return c.subscribe(&Subscription{any: true, fn: h})
}

func (c *Client) subscribe(s *Subscription) *Subscription {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.subs = append(c.subs, s)
	return s
}

// Off removes a subscription. Unknown or already removed subscriptions are ignored.
func (c *Client) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(s *Subscription) bool { return s == sub })
}

// Send writes a command. While not connected the command is dropped with a
// warning; write failures are logged, never returned.
func (c *Client) Send(ctx context.Context, name CommandName, payload any) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.metrics.command(name, "dropped")
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Realtime not connected, command dropped",
			logger.Event(string(name)),
			slog.String("state", state.String()),
		)
		return
	}

	frame, err := EncodeCommand(name, payload)
	if err != nil {
		c.metrics.command(name, "failed")
		c.logger.LogAttrs(ctx, slog.LevelError, "Failed to encode command",
			logger.Event(string(name)),
			logger.Error(err),
		)
		return
	}

	wctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, frame); err != nil {
		c.metrics.command(name, "failed")
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to send command",
			logger.Event(string(name)),
			logger.Error(err),
		)
		return
	}
	c.metrics.command(name, "sent")
}

// FetchNotifications asks the backend to resend the full list.
func (c *Client) FetchNotifications(ctx context.Context) {
	c.Send(ctx, CommandFetch, nil)
}

// MarkRead tells the backend a notification was read.
func (c *Client) MarkRead(ctx context.Context, id notification.ID) {
	c.Send(ctx, CommandMarkRead, markReadPayload{ID: id})
}

func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID identifies the current connection; empty when disconnected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ""
	}
	return c.connID
}

func (c *Client) dial(ctx context.Context, token string) (Conn, string, error) {
	if c.resolver == nil {
		return nil, "", ErrConfigUnavailable
	}
	ep, err := c.resolver.Resolve(ctx)
	if err != nil {
		if !errors.Is(err, ErrConfigUnavailable) {
			err = errors.Join(ErrConfigUnavailable, err)
		}
		return nil, "", err
	}
	conn, err := c.dialer.Dial(ctx, ep.URL, token)
	if err != nil {
		return nil, ep.URL, err
	}
	return conn, ep.URL, nil
}

// run is the only goroutine that emits events, so lifecycle and payload
// events reach handlers in order.
func (c *Client) run(ctx context.Context, gen uint64, conn Conn, endpoint string) {
	reconnect := false
	for {
		connID := c.ConnectionID()
		c.emit(Connected{ConnectionID: connID, Endpoint: endpoint, Reconnect: reconnect})

		err := c.read(ctx, gen, conn)

		c.mu.Lock()
		explicit := c.gen != gen
		if !explicit {
			c.conn = nil
			c.state = StateConnecting
		}
		c.mu.Unlock()

		if explicit {
			c.emit(Disconnected{ConnectionID: connID})
			return
		}

		_ = conn.Close()
		c.metrics.setConnected(false)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Realtime connection lost, reconnecting",
			logger.ConnectionID(connID),
			logger.Error(err),
		)
		c.emit(Disconnected{ConnectionID: connID, Err: err})

		conn, endpoint, err = c.reconnect(ctx)
		if err != nil {
			c.mu.Lock()
			var cancel context.CancelFunc
			if c.gen == gen {
				c.state = StateDisconnected
				cancel, c.cancel = c.cancel, nil
				c.done = nil
			}
			c.mu.Unlock()
			if cancel != nil {
				defer cancel()
			}
			if ctx.Err() == nil {
				c.metrics.reconnect("exhausted")
				c.logger.LogAttrs(ctx, slog.LevelError, "Realtime reconnect gave up",
					logger.Error(err),
				)
			}
			return
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.connID = uuid.NewString()
		c.endpoint = endpoint
		newID := c.connID
		c.mu.Unlock()

		c.metrics.reconnect("success")
		c.metrics.setConnected(true)
		c.logger.LogAttrs(ctx, slog.LevelInfo, "Realtime reconnected",
			logger.ConnectionID(newID),
			logger.Endpoint(endpoint),
		)
		reconnect = true
	}
}

func (c *Client) read(ctx context.Context, gen uint64, conn Conn) error {
	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		ev, err := DecodeEvent(frame)
		if err != nil {
			c.metrics.event("invalid")
			c.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping undecodable frame",
				logger.Error(err),
			)
			continue
		}
		if !c.current(gen) {
			return ErrConnectAborted
		}
		c.metrics.event(string(ev.Name()))
		c.emit(ev)
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Token
}

func (c *Client) emit(ev Event) {
	c.hmu.RLock()
	subs := slices.Clone(c.subs)
	c.hmu.RUnlock()

	for _, s := range subs {
		if s.any || s.name == ev.Name() {
			c.dispatch(s, ev)
		}
	}
}

func (c *Client) dispatch(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.LogAttrs(context.Background(), slog.LevelError, "Event handler panicked",
				logger.Event(string(ev.Name())),
				slog.Any("panic", r),
			)
		}
	}()
	s.fn(ev)
}

package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/storedesk/notifykit/pkg/session"
)

// Config holds the tunables of a Client. Load it with config.Load.
type Config struct {
	ReconnectAttempts int           `env:"REALTIME_RECONNECT_ATTEMPTS" envDefault:"5"`
	ReconnectDelay    time.Duration `env:"REALTIME_RECONNECT_DELAY" envDefault:"1s"`
	ReconnectMaxDelay time.Duration `env:"REALTIME_RECONNECT_MAX_DELAY" envDefault:"5s"`
	DialTimeout       time.Duration `env:"REALTIME_DIAL_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"REALTIME_WRITE_TIMEOUT" envDefault:"5s"`
	ReadLimit         int64         `env:"REALTIME_READ_LIMIT" envDefault:"1048576"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		ReconnectMaxDelay: 5 * time.Second,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadLimit:         1 << 20,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the tunables. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		if cfg.ReconnectAttempts > 0 {
			c.cfg.ReconnectAttempts = cfg.ReconnectAttempts
		}
		if cfg.ReconnectDelay > 0 {
			c.cfg.ReconnectDelay = cfg.ReconnectDelay
		}
		if cfg.ReconnectMaxDelay > 0 {
			c.cfg.ReconnectMaxDelay = cfg.ReconnectMaxDelay
		}
		if cfg.DialTimeout > 0 {
			c.cfg.DialTimeout = cfg.DialTimeout
		}
		if cfg.WriteTimeout > 0 {
			c.cfg.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.ReadLimit > 0 {
			c.cfg.ReadLimit = cfg.ReadLimit
		}
	}
}

// WithReconnect bounds automatic reconnection.
func WithReconnect(attempts int, delay, maxDelay time.Duration) Option {
	return WithConfig(Config{
		ReconnectAttempts: attempts,
		ReconnectDelay:    delay,
		ReconnectMaxDelay: maxDelay,
	})
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for the websocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPermissionChecker overrides the gate that decides whether a session
// may open the stream. Defaults to session.CanViewNotifications.
func WithPermissionChecker(fn session.PermissionChecker) Option {
	return func(c *Client) {
		if fn != nil {
			c.permitted = fn
		}
	}
}

// WithClock sets the clock driving reconnect delays.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers the client's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

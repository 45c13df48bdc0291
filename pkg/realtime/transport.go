package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Conn is one established stream.
type Conn interface {
	// Read blocks until the next frame arrives or the stream fails.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one frame. Safe to call concurrently with Read.
	Write(ctx context.Context, frame []byte) error
	// Close performs a normal closure.
	Close() error
}

// Dialer opens an authenticated stream to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint, token string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, endpoint, token string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	return f(ctx, endpoint, token)
}

// WebsocketDialer dials the stream over a websocket. The token is sent both
// as a bearer Authorization header and as the "token" query parameter, since
// browser-facing gateways often only read the latter.
type WebsocketDialer struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	ReadLimit  int64
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: parse endpoint: %w", ErrDialFailed, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	c, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, newHandshakeError(resp, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{c: c}, nil
}

// newHandshakeError extracts {"code","message"} (or {"error"}) from the
// rejection body when the gateway sends one.
func newHandshakeError(resp *http.Response, cause error) *HandshakeError {
	he := &HandshakeError{StatusCode: resp.StatusCode, Err: cause}
	if resp.Body == nil {
		return he
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		he.Code = body.Code
		he.Message = body.Message
		if he.Message == "" {
			he.Message = body.Error
		}
		return he
	}
	he.Message = strings.TrimSpace(string(raw))
	return he
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "client disconnect")
}

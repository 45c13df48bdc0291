package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/storedesk/notifykit/pkg/logger"
)

// reconnect redials with capped exponential backoff. It waits one initial
// delay before the first attempt and gives up after ReconnectAttempts dials
// or on a 401/403 handshake rejection. Every wait runs on the client clock.
func (c *Client) reconnect(ctx context.Context) (Conn, string, error) {
	if err := c.sleep(ctx, c.cfg.ReconnectDelay); err != nil {
		return nil, "", err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectDelay
	b.MaxInterval = c.cfg.ReconnectMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.Reset()

	token := c.token()
	attempts := max(c.cfg.ReconnectAttempts, 1)
	for attempt := 1; ; attempt++ {
		conn, endpoint, err := c.dial(ctx, token)
		if err == nil {
			return conn, endpoint, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		var he *HandshakeError
		if errors.As(err, &he) && he.Unauthorized() {
			return nil, "", err
		}
		if attempt >= attempts {
			return nil, "", fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, attempt, err)
		}

		next := b.NextBackOff()
		c.logger.LogAttrs(ctx, slog.LevelWarn, "Realtime reconnect attempt failed",
			logger.Attempt(attempt),
			logger.Duration(next),
			logger.Error(err),
		)
		if err := c.sleep(ctx, next); err != nil {
			return nil, "", err
		}
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := c.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

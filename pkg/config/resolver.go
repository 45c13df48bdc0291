package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storedesk/notifykit/pkg/logger"
)

// Endpoint is the resolved address of the notification stream server.
type Endpoint struct {
	URL string
}

// Resolver resolves the stream server address at connect time.
type Resolver interface {
	Resolve(ctx context.Context) (Endpoint, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (Endpoint, error)

func (f ResolverFunc) Resolve(ctx context.Context) (Endpoint, error) { return f(ctx) }

// StaticResolver always returns the same address.
type StaticResolver string

func (s StaticResolver) Resolve(context.Context) (Endpoint, error) {
	if strings.TrimSpace(string(s)) == "" {
		return Endpoint{}, ErrConfigUnavailable
	}
	return Endpoint{URL: string(s)}, nil
}

// RuntimeConfig is the document served by the console at /config.json.
type RuntimeConfig struct {
	SocketURL string `json:"socketUrl"`
}

// HTTPResolver fetches RuntimeConfig from the console origin.
type HTTPResolver struct {
	origin       string
	path         string
	client       *http.Client
	fallback     bool
	fallbackPath string
	logger       *slog.Logger
}

// HTTPResolverOption configures an HTTPResolver.
type HTTPResolverOption func(*HTTPResolver)

// WithHTTPClient overrides the HTTP client (default: 5s timeout).
func WithHTTPClient(c *http.Client) HTTPResolverOption {
	return func(r *HTTPResolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithConfigPath overrides the runtime config path (default "/config.json").
func WithConfigPath(path string) HTTPResolverOption {
	return func(r *HTTPResolver) {
		if path != "" {
			r.path = path
		}
	}
}

// WithSameOriginFallback makes Resolve return ws(s)://<origin host><path>
// when the runtime config is unavailable or empty. Path defaults to "/ws".
func WithSameOriginFallback(path string) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.fallback = true
		if path != "" {
			r.fallbackPath = path
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *slog.Logger) HTTPResolverOption {
	return func(r *HTTPResolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewHTTPResolver creates a resolver for the console served at origin,
// e.g. "https://backoffice.example.com".
func NewHTTPResolver(origin string, opts ...HTTPResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		origin:       strings.TrimRight(origin, "/"),
		path:         "/config.json",
		client:       &http.Client{Timeout: 5 * time.Second},
		fallbackPath: "/ws",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPResolver) Resolve(ctx context.Context) (Endpoint, error) {
	cfg, err := r.fetch(ctx)
	if err == nil && cfg.SocketURL != "" {
		return Endpoint{URL: cfg.SocketURL}, nil
	}
	if err == nil {
		err = ErrEmptySocketURL
	}

	if !r.fallback {
		return Endpoint{}, errors.Join(ErrConfigUnavailable, err)
	}

	ep, ferr := SameOrigin(r.origin, r.fallbackPath)
	if ferr != nil {
		return Endpoint{}, errors.Join(ErrConfigUnavailable, err, ferr)
	}

	r.logger.LogAttrs(ctx, slog.LevelWarn, "Runtime config unavailable, using same-origin stream endpoint",
		logger.Component("config"),
		logger.Endpoint(ep.URL),
		logger.Error(err),
	)
	return ep, nil
}

func (r *HTTPResolver) fetch(ctx context.Context) (RuntimeConfig, error) {
	var cfg RuntimeConfig

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.origin+r.path, nil)
	if err != nil {
		return cfg, fmt.Errorf("build runtime config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return cfg, fmt.Errorf("fetch runtime config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cfg, fmt.Errorf("fetch runtime config: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode runtime config: %w", err)
	}
	return cfg, nil
}

// SameOrigin derives the websocket address served by origin itself.
func SameOrigin(origin, path string) (Endpoint, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse origin: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported origin scheme %q", ErrConfigUnavailable, u.Scheme)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: origin has no host", ErrConfigUnavailable)
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return Endpoint{URL: u.String()}, nil
}

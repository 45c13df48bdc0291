package opsserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Server.
type Option func(*Server)

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(s *Server) { s.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithGatherer exposes g on /metrics (prometheus.DefaultGatherer otherwise).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithReadiness adds a named check to /readyz.
func WithReadiness(name string, check Check) Option {
	if check == nil {
		panic("WithReadiness: nil check")
	}
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, check: check})
	}
}

// WithState serves the value returned by fn as JSON on /state.
func WithState(fn func() any) Option {
	return func(s *Server) { s.state = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

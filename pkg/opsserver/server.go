package opsserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/storedesk/notifykit/pkg/logger"
)

type namedCheck struct {
	name  string
	check Check
}

// Server is the ops HTTP listener.
type Server struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	gatherer        prometheus.Gatherer
	checks          []namedCheck
	state           func() any
	logger          *slog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	ready    chan struct{}
}

func New(opts ...Option) *Server {
	s := &Server{
		addr:            ":9090",
		readTimeout:     5 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 5 * time.Second,
		gatherer:        prometheus.DefaultGatherer,
		logger:          slog.Default(),
		ready:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("opsserver"))
	return s
}

// Handler returns the router serving the ops endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", metricsHandler(s.gatherer))
	if s.state != nil {
		r.Get("/state", s.handleState)
	}
	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, ErrAlreadyRunning)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, err)
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}
	s.srv, s.listener = srv, ln
	close(s.ready)
	s.mu.Unlock()

	s.logger.LogAttrs(ctx, slog.LevelInfo, "Ops server listening", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var runErr error
	select {
	case <-ctx.Done():
		if err := s.shutdown(); err != nil {
			return err
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	s.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "Ops server stopped")
	return nil
}

// Addr blocks until Run is listening and returns the bound address.
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr().String(), nil
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}

// Command notifywatch is a headless console client for the notification
// stream. It connects with the session token from the environment, keeps the
// notification store up to date and prints every change to stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/storedesk/notifykit/pkg/config"
	"github.com/storedesk/notifykit/pkg/logger"
	"github.com/storedesk/notifykit/pkg/notifystore"
	"github.com/storedesk/notifykit/pkg/opsserver"
	"github.com/storedesk/notifykit/pkg/rbac"
	"github.com/storedesk/notifykit/pkg/realtime"
	"github.com/storedesk/notifykit/pkg/session"
	"github.com/storedesk/notifykit/pkg/snapshot"
)

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	Token     string `env:"NOTIFY_TOKEN,required"`
	Origin    string `env:"NOTIFY_ORIGIN"`
	SocketURL string `env:"NOTIFY_SOCKET_URL"`
	RolesFile string `env:"NOTIFY_ROLES_FILE"`

	// SnapshotBackend is one of "memory", "redis" or "none".
	SnapshotBackend string `env:"SNAPSHOT_BACKEND" envDefault:"memory"`

	Realtime realtime.Config
	Redis    snapshot.RedisConfig
	Ops      opsserver.Config
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "notifywatch:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.Env, "notifywatch"),
		logger.WithOutput(os.Stderr),
	}
	if cfg.LogLevel != "" {
		logOpts = append(logOpts, logger.WithLevelString(cfg.LogLevel))
	}
	if cfg.LogFormat != "" {
		logOpts = append(logOpts, logger.WithFormat(logger.Format(cfg.LogFormat)))
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := session.FromToken(cfg.Token)
	if err != nil {
		return err
	}

	checker, err := permissionChecker(ctx, cfg.RolesFile)
	if err != nil {
		return err
	}

	resolver, err := newResolver(cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := realtime.New(resolver,
		realtime.WithConfig(cfg.Realtime),
		realtime.WithPermissionChecker(checker),
		realtime.WithLogger(log),
		realtime.WithMetrics(reg),
	)

	storeOpts := []notifystore.Option{
		notifystore.WithLogger(log),
		notifystore.WithMetrics(reg),
	}
	readiness := []opsserver.Option{
		opsserver.WithReadiness("stream", streamReady(client)),
	}

	switch cfg.SnapshotBackend {
	case "redis":
		db, err := snapshot.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		snaps := snapshot.NewRedisStoreFromConfig(db, cfg.Redis)
		defer snaps.Close()
		storeOpts = append(storeOpts, notifystore.WithSnapshot(snaps, snapshotKey(sess)))
		readiness = append(readiness, opsserver.WithReadiness("redis", snapshot.Healthcheck(db)))
	case "memory":
		storeOpts = append(storeOpts, notifystore.WithSnapshot(snapshot.NewMemory(), snapshotKey(sess)))
	case "none", "":
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", cfg.SnapshotBackend)
	}

	store := notifystore.New(storeOpts...)
	defer store.Close()

	ops := opsserver.NewFromConfig(cfg.Ops, append(readiness,
		opsserver.WithGatherer(reg),
		opsserver.WithLogger(log),
		opsserver.WithState(func() any { return store.State() }),
	)...)
	opsErr := make(chan error, 1)
	go func() { opsErr <- ops.Run(ctx) }()

	sub := store.Subscribe(ctx)
	defer sub.Close()

	store.Start(ctx, client, sess)
	log.LogAttrs(ctx, slog.LevelInfo, "Watching notifications",
		logger.UserID(sess.UserID),
		slog.String("role", sess.Role),
	)

	p := newPrinter(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			store.Stop()
			if opsErr != nil {
				return <-opsErr
			}
			return nil
		case err := <-opsErr:
			if err != nil {
				return err
			}
			opsErr = nil
		case st, ok := <-sub.C():
			if !ok {
				return nil
			}
			p.print(st)
		}
	}
}

// streamReady fails while the stream is down, including during reconnects.
func streamReady(stream interface{ IsConnected() bool }) opsserver.Check {
	return func(context.Context) error {
		if !stream.IsConnected() {
			return realtime.ErrNotConnected
		}
		return nil
	}
}

func newResolver(cfg appConfig, log *slog.Logger) (config.Resolver, error) {
	switch {
	case cfg.SocketURL != "":
		return config.StaticResolver(cfg.SocketURL), nil
	case cfg.Origin != "":
		return config.NewHTTPResolver(cfg.Origin,
			config.WithSameOriginFallback("/ws"),
			config.WithResolverLogger(log),
		), nil
	default:
		return nil, errors.New("set NOTIFY_SOCKET_URL or NOTIFY_ORIGIN")
	}
}

func permissionChecker(ctx context.Context, rolesFile string) (session.PermissionChecker, error) {
	if rolesFile == "" {
		return session.CanViewNotifications, nil
	}
	auth, err := rbac.NewAuthorizer(ctx, rbac.NewYAMLFileRoleSource(rolesFile))
	if err != nil {
		return nil, err
	}
	return session.RoleChecker(auth), nil
}

func snapshotKey(sess session.Session) string {
	if sess.UserID != "" {
		return sess.UserID
	}
	return "anonymous"
}

package opsserver

import "time"

// Config is the env-driven configuration of the ops listener.
type Config struct {
	Addr            string        `env:"OPS_ADDR" envDefault:":9090"`
	ReadTimeout     time.Duration `env:"OPS_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"OPS_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"OPS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// NewFromConfig creates a Server from cfg. Zero values keep the defaults;
// opts are applied afterwards.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	configOpts := make([]Option, 0, 4+len(opts))
	if cfg.Addr != "" {
		configOpts = append(configOpts, WithAddr(cfg.Addr))
	}
	if cfg.ReadTimeout > 0 {
		configOpts = append(configOpts, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		configOpts = append(configOpts, WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		configOpts = append(configOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	return New(append(configOpts, opts...)...)
}

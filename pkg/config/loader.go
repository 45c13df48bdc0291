package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Load fills v from environment variables using `env` / `envDefault` struct
// tags. A `.env` file in the working directory is loaded once per process
// before the first parse; a missing file is not an error.
//
//	type AppConfig struct {
//		ConsoleOrigin string        `env:"CONSOLE_ORIGIN,required"`
//		ToastTTL      time.Duration `env:"TOAST_TTL" envDefault:"10s"`
//	}
//
//	var cfg AppConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadWithPrefix is Load with every variable name prefixed, e.g. "NOTIFY_".
func LoadWithPrefix[T any](v *T, prefix string) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if err := env.ParseWithOptions(v, env.Options{Prefix: prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadEnvFiles loads the given .env files into the process environment
// without overriding variables that are already set.
func LoadEnvFiles(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Package config covers the two kinds of configuration the notification
// pipeline needs.
//
// Process configuration is parsed from environment variables into tagged
// structs with `github.com/caarlos0/env/v11`, after an optional `.env` file is
// loaded with `github.com/joho/godotenv`:
//
//	var cfg realtime.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Runtime connection configuration (the address of the notification stream
// server) is resolved lazily, on every connect, through a Resolver. The
// HTTPResolver reads the console's /config.json document and can fall back to
// the same-origin websocket endpoint:
//
//	resolver := config.NewHTTPResolver("https://backoffice.example.com",
//	    config.WithSameOriginFallback("/ws"),
//	)
//	ep, err := resolver.Resolve(ctx) // errors.Is(err, config.ErrConfigUnavailable)
//
// # Error Handling
//
//   - ErrParsingConfig     – env vars could not be parsed into the struct.
//   - ErrNilPointer        – nil pointer passed to Load.
//   - ErrConfigUnavailable – no stream address could be determined.
package config

// Package logger builds *slog.Logger values for notifykit binaries and
// provides attribute helpers so every component names its fields the same way.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "notifywatch"),
//	    logger.WithLevelString(os.Getenv("LOG_LEVEL")),
//	)
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelWarn, "Send while disconnected",
//	    logger.Component("realtime"),
//	    logger.Event("notification:mark_read"),
//	)
//
// Context extractors (WithContextValue, WithContextExtractors) add attributes
// read from the context at logging time.
package logger

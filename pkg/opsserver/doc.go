// Package opsserver serves the operational endpoints of a notifykit process:
//
//	GET /metrics   Prometheus exposition of the configured gatherer
//	GET /healthz   liveness, always "ALIVE"
//	GET /readyz    readiness, "READY" when every registered check passes
//	GET /state     JSON view supplied by WithState, when set
//
// Run blocks until its context is cancelled and then shuts the listener down
// within the configured timeout. Signal handling is left to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := opsserver.NewFromConfig(cfg,
//	    opsserver.WithGatherer(reg),
//	    opsserver.WithReadiness("stream", func(context.Context) error { ... }),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package opsserver

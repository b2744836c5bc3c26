// Package httpserver runs an http.Handler with graceful shutdown bound to a
// context, and provides a JSON health handler for liveness and readiness
// probes.
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	srv := httpserver.New(cfg, log)
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server failed", logger.Error(err))
//	}
package httpserver

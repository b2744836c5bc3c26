// Package logger builds *slog.Logger instances with functional options and
// provides attribute helpers that keep key names consistent across the
// service.
//
// New picks a JSON or text handler, applies static attributes and wraps the
// result so that registered ContextExtractor callbacks can add request-scoped
// values (for example a request id) to every record.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "subcycle"),
//	    logger.WithLevelName(cfg.LogLevel),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "trial started",
//	    logger.OrganizationID(sub.OrganizationID),
//	    logger.Status(sub.Status),
//	)
//
// Error returns an empty attribute for nil errors, so it can be passed
// unconditionally.
package logger

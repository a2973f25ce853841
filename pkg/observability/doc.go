// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user", name).Info("login succeeded")
//
// With ADMINKIT_LOG_FILE set, cmd/adminkit writes through FileOutput, a
// lumberjack writer that rotates by size. FromContext returns the request
// logger enriched with request id, user name and trace ids.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// HTTP series are labelled with the mux path template, never the raw path.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
package observability

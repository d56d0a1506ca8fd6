// Package httpserver runs the gateway's HTTP surface: a net/http server with
// graceful shutdown, an observability middleware stack, health endpoints and the
// Response envelope.
//
//	var health *httpserver.HealthHandler
//	server := httpserver.New(
//	    httpserver.WithConfig(httpserver.GatewayConfig()),
//	    httpserver.WithLogger(logger),
//	    httpserver.WithTracing(httpserver.TracingConfig{SkipPaths: quiet}),
//	    httpserver.WithMetrics(httpserver.DefaultMetricsConfig()),
//	    httpserver.WithLogging(httpserver.LoggerConfig{Logger: logger, SkipPaths: quiet}),
//	    httpserver.WithRateLimit(httpserver.DefaultRateLimitConfig()),
//	    httpserver.WithHealth(&health, version),
//	    httpserver.WithMiddleware(httpserver.DefaultMiddleware(
//	        httpserver.WithDefaultLogger(httpserver.LoggerConfig{Logger: logger}),
//	    )),
//	    httpserver.WithHandler(router),
//	)
//	err := server.ListenAndServe(ctx)
//
// The service name set with WithServiceName (or the config preset) reaches
// spans, metrics, request logs and health responses.
//
// Rate limiting keeps token buckets in memory unless RateLimitConfig.Redis is
// set, in which case replicas share them through a Lua script. Redis
// failures let the request through.
package httpserver

// Command transitd serves the MPK and SIMS transit upstreams behind one
// JSON gateway.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kroma-labs/transit-go/cmd/transitd/internal/telemetry"
	"github.com/kroma-labs/transit-go/config"
	"github.com/kroma-labs/transit-go/fanout"
	"github.com/kroma-labs/transit-go/gateway"
	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/kroma-labs/transit-go/httpserver"
	"github.com/kroma-labs/transit-go/mpk"
	"github.com/kroma-labs/transit-go/sims"
)

const serviceName = "transitd"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Paths that would drown the request log and traces.
var quietPaths = []string{"/ping", "/livez", "/readyz", "/metrics"}

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
	log.Logger = logger

	if err := run(logger, *configFile); err != nil {
		logger.Fatal().Err(err).Msg("transitd stopped")
	}
}

func run(logger zerolog.Logger, configFile string) error {
	ctx := context.Background()

	// 1. Configuration
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	cfg, err := config.Load(serviceName, opts...)
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	// 2. OpenTelemetry (tracing + metrics behind /metrics)
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, serviceName, version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	health := httpserver.NewHealthHandler(
		httpserver.WithHealthServiceName(serviceName),
		httpserver.WithVersion(version),
	)

	// 3. Optional Redis for shared breaker state and rate limit buckets
	var rdb redis.UniversalClient
	if cfg.HTTPClient.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.HTTPClient.RedisAddr})
		defer func() { _ = rdb.Close() }()

		health.AddReadinessCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// 4. Upstream clients
	mpkCfg, err := cfg.MPK.ClientConfig()
	if err != nil {
		return err
	}
	mpkClient, err := mpk.New(mpkCfg,
		newHTTPClient(cfg, rdb, providers, logger, "mpk", httpclient.DefaultConfig()),
		mpk.WithLogger(logger.With().Str("upstream", "mpk").Logger()),
	)
	if err != nil {
		return err
	}

	simsCfg := cfg.SIMS.ClientConfig()
	if err := simsCfg.Validate(); err != nil {
		return err
	}
	fetcher := fanout.New(
		newHTTPClient(cfg, rdb, providers, logger, "sims", httpclient.MirrorConfig()),
		fanout.WithLogger(logger.With().Str("upstream", "sims").Logger()),
		fanout.WithTracerProvider(providers.TracerProvider),
		fanout.WithMeterProvider(providers.MeterProvider),
	)
	simsClient := sims.New(simsCfg, fetcher)

	// 5. Gateway routes
	router, err := gateway.NewRouter(mpkClient, simsClient,
		gateway.WithLogger(logger),
		gateway.WithHealth(health),
		gateway.WithRegistry(providers.Registry),
	)
	if err != nil {
		return err
	}

	// 6. Server
	server := httpserver.New(serverOptions(cfg, rdb, providers, logger, router)...)
	logger.Info().
		Str("addr", server.Addr()).
		Strs("sims_hosts", simsCfg.Hosts).
		Msg("transitd listening")

	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info().Msg("transitd stopped gracefully")
	return nil
}

func newHTTPClient(
	cfg *config.Config,
	rdb redis.UniversalClient,
	providers *telemetry.Providers,
	logger zerolog.Logger,
	name string,
	base httpclient.Config,
) *httpclient.Client {
	base.Timeout = cfg.HTTPClient.Timeout

	opts := []httpclient.Option{
		httpclient.WithConfig(base),
		httpclient.WithServiceName(name),
		httpclient.WithUserAgent(serviceName + "/" + version),
		httpclient.WithTracerProvider(providers.TracerProvider),
		httpclient.WithMeterProvider(providers.MeterProvider),
		httpclient.WithPropagators(providers.Propagator),
		httpclient.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
	}

	if cfg.HTTPClient.Breaker {
		breaker := httpclient.DefaultBreakerConfig()
		if rdb != nil {
			breaker = httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
		}
		opts = append(opts, httpclient.WithBreakerConfig(breaker))
	}

	if cfg.HTTPClient.RequestsPerSecond > 0 {
		opts = append(opts, httpclient.WithRateLimit(httpclient.RateLimitConfig{
			RequestsPerSecond: cfg.HTTPClient.RequestsPerSecond,
			Burst:             cfg.HTTPClient.Burst,
			WaitOnLimit:       true,
		}))
	}

	if cfg.Log.Debug {
		opts = append(opts, httpclient.WithDebug(logger.With().Str("client", name).Logger()))
	}

	return httpclient.New(opts...)
}

func serverOptions(
	cfg *config.Config,
	rdb redis.UniversalClient,
	providers *telemetry.Providers,
	logger zerolog.Logger,
	handler *gateway.Router,
) []httpserver.Option {
	srv := httpserver.GatewayConfig()
	srv.ReadTimeout = cfg.Server.ReadTimeout
	srv.WriteTimeout = cfg.Server.WriteTimeout
	srv.IdleTimeout = cfg.Server.IdleTimeout
	srv.ShutdownTimeout = cfg.Server.ShutdownTimeout

	opts := []httpserver.Option{
		httpserver.WithConfig(srv),
		httpserver.WithAddr(cfg.Server.Addr),
		httpserver.WithServiceName(serviceName),
		httpserver.WithLogger(logger),
		httpserver.WithHandler(handler),
		httpserver.WithTracing(httpserver.TracingConfig{
			TracerProvider: providers.TracerProvider,
			Propagator:     providers.Propagator,
			SkipPaths:      quietPaths,
		}),
		httpserver.WithMetrics(httpserver.MetricsConfig{
			MeterProvider: providers.MeterProvider,
			SkipPaths:     quietPaths,
		}),
		httpserver.WithLogging(httpserver.LoggerConfig{
			Logger:        logger,
			SkipPaths:     quietPaths,
			SlowThreshold: 5 * time.Second,
		}),
		httpserver.WithRequestTimeout(cfg.Server.RequestTimeout),
		httpserver.WithMiddleware(httpserver.DefaultMiddleware(
			httpserver.WithDefaultLogger(httpserver.LoggerConfig{Logger: logger}),
		)),
	}

	if cfg.Server.RequestsPerSecond > 0 {
		limit := httpserver.DefaultRateLimitConfig()
		limit.Limit = rate.Limit(cfg.Server.RequestsPerSecond)
		limit.Burst = cfg.Server.Burst
		limit.Redis = rdb
		limit.Logger = logger
		opts = append(opts, httpserver.WithRateLimit(limit))
	}

	return opts
}

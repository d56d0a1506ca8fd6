package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// ErrNoHandler is returned by Serve when no handler was configured.
var ErrNoHandler = errors.New("httpserver: handler is required (use WithHandler)")

// Server wraps http.Server with a middleware stack, signal handling and
// graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     Config
	logger     zerolog.Logger
}

// New creates a Server. Unset values fall back to DefaultConfig.
//
// The built-in layers wrap the handler in this order, outermost first:
// tracing, metrics, request logging, rate limiting, request timeout, then the
// middleware given with WithMiddleware.
func New(opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "http-server"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	var stack []Middleware

	if cfg.TracingConfig != nil {
		tc := *cfg.TracingConfig
		tc.serviceName = cfg.ServiceName
		stack = append(stack, Tracing(tc))
	}
	if cfg.MetricsConfig != nil {
		mc := *cfg.MetricsConfig
		mc.serviceName = cfg.ServiceName
		if m, err := NewMetrics(mc); err != nil {
			logger.Warn().Err(err).Msg("server metrics disabled")
		} else {
			stack = append(stack, m.Middleware())
		}
	}
	if cfg.LoggerConfig != nil {
		lc := *cfg.LoggerConfig
		lc.serviceName = cfg.ServiceName
		stack = append(stack, Logger(lc))
	}
	if cfg.RateLimitConfig != nil {
		stack = append(stack, RateLimit(*cfg.RateLimitConfig))
	}
	if cfg.RequestTimeout > 0 {
		stack = append(stack, Timeout(cfg.RequestTimeout))
	}

	if cfg.HealthHandler != nil {
		*cfg.HealthHandler = NewHealthHandler(
			WithHealthServiceName(cfg.ServiceName),
			WithVersion(cfg.HealthVersion),
		)
	}

	stack = append(stack, cfg.Middleware...)

	handler := cfg.Handler
	if handler != nil && len(stack) > 0 {
		handler = Chain(stack...)(handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		config: cfg,
		logger: logger,
	}
}

// ListenAndServe listens on the configured address and blocks until ctx is
// cancelled, SIGTERM or SIGINT arrives, or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.Handler == nil {
		_ = ln.Close()
		return ErrNoHandler
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signals)

	errs := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("service", s.config.ServiceName).
			Msg("server starting")

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if ok {
			s.logger.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	case sig := <-signals:
		s.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		s.logger.Info().Err(ctx.Err()).Msg("context cancelled, shutting down")
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.logger.Info().Dur("timeout", s.config.ShutdownTimeout).Msg("starting graceful shutdown")

	// The serve context is already done here, so shutdown gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		if closeErr := s.httpServer.Close(); closeErr != nil {
			s.logger.Error().Err(closeErr).Msg("force close failed")
		}
		return err
	}

	s.logger.Info().Msg("server stopped gracefully")
	return nil
}

// Shutdown gracefully stops a running server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the handler wrapped in the full middleware stack.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ServiceName returns the configured service name.
func (s *Server) ServiceName() string {
	return s.config.ServiceName
}

package fanout

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/kroma-labs/transit-go/fanout"

// DefaultMaxBodyBytes caps the body read from one mirror.
const DefaultMaxBodyBytes = 32 << 20

type internalConfig struct {
	Logger         zerolog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	MaxBodyBytes   int64
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		Logger:         zerolog.Nop(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Fetcher.
type Option func(*internalConfig)

// WithLogger sets the logger for leg and degradation events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithTracerProvider sets the provider of the fanout.leg spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets the provider of the leg metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithMaxBodyBytes caps the body read from one mirror. Values of zero or
// less keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(cfg *internalConfig) {
		if n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
}

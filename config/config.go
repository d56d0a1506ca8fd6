// Package config loads the transitd daemon configuration from config.yml,
// an optional .env file and TRANSITD_* environment variables, in increasing
// order of precedence.
package config

import (
	"time"

	"github.com/kroma-labs/transit-go/httpclient"
	"github.com/kroma-labs/transit-go/mpk"
	"github.com/kroma-labs/transit-go/sims"
	"github.com/spf13/viper"
)

// Config is the complete daemon configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	MPK        MPKConfig        `mapstructure:"mpk"`
	SIMS       SIMSConfig       `mapstructure:"sims"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// RequestTimeout bounds every upstream call made for one request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	// RequestsPerSecond limits each client IP. Zero disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	// Debug logs every upstream request as a cURL command.
	Debug bool `mapstructure:"debug"`
}

// HTTPClientConfig configures the upstream transport chain.
type HTTPClientConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RequestsPerSecond of zero disables client-side rate limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
	Breaker           bool    `mapstructure:"breaker"`
	// RedisAddr shares breaker state and server rate limit buckets across
	// replicas when set.
	RedisAddr string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
}

// MPKConfig configures the MPK client.
type MPKConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	Path         string        `mapstructure:"path" validate:"required,startswith=/"`
	Username     string        `mapstructure:"username" validate:"required"`
	Password     string        `mapstructure:"password"`
	Timezone     string        `mapstructure:"timezone" validate:"required,timezone"`
	PositionsLag time.Duration `mapstructure:"positions_lag" validate:"gte=0"`
}

// SIMSConfig configures the SIMS mirrors.
type SIMSConfig struct {
	Hosts []string `mapstructure:"hosts" validate:"required,min=1,dive,url"`
}

// TelemetryConfig configures trace export. Metrics are always served at
// /metrics.
type TelemetryConfig struct {
	// OTLPEndpoint is the host:port of an OTLP gRPC collector. Empty
	// disables trace export.
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" validate:"omitempty,hostname_port"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// ClientConfig converts c to an mpk.Config.
func (c MPKConfig) ClientConfig() (mpk.Config, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return mpk.Config{}, err
	}
	return mpk.Config{
		BaseURL:      c.BaseURL,
		Path:         c.Path,
		Username:     c.Username,
		Password:     c.Password,
		Location:     loc,
		PositionsLag: c.PositionsLag,
	}, nil
}

// ClientConfig converts c to a sims.Config.
func (c SIMSConfig) ClientConfig() sims.Config {
	return sims.Config{Hosts: c.Hosts}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.requests_per_second", 20)
	v.SetDefault("server.burst", 40)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.debug", false)

	client := httpclient.MirrorConfig()
	limit := httpclient.DefaultRateLimitConfig()
	v.SetDefault("http_client.timeout", client.Timeout)
	v.SetDefault("http_client.requests_per_second", limit.RequestsPerSecond)
	v.SetDefault("http_client.burst", limit.Burst)
	v.SetDefault("http_client.breaker", true)
	v.SetDefault("http_client.redis_addr", "")

	m := mpk.DefaultConfig()
	v.SetDefault("mpk.base_url", m.BaseURL)
	v.SetDefault("mpk.path", m.Path)
	v.SetDefault("mpk.username", m.Username)
	v.SetDefault("mpk.password", m.Password)
	v.SetDefault("mpk.timezone", m.Location.String())
	v.SetDefault("mpk.positions_lag", m.PositionsLag)

	v.SetDefault("sims.hosts", sims.DefaultHosts())

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Package config provides the configuration schema and loader for the
// changedetection-mcp server.
//
// Configuration is layered: defaults, then an optional YAML file, then
// environment variables. The environment layer keeps compatibility with the
// variables the server has always honoured (CHANGEDETECTION_URL,
// CHANGEDETECTION_API_KEY, RATE_LIMIT_* and friends), so container
// deployments need no config file at all.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. Build it with [Default],
// [Load], or [FromEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds logging and diagnostics settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// Debug surfaces execution-error detail verbatim in tool responses.
	// Keep off in production; full detail is always logged regardless.
	Debug bool `yaml:"debug"`
}

// UpstreamConfig locates the changedetection.io instance.
type UpstreamConfig struct {
	// BaseURL is the instance address, e.g. "http://localhost:5000".
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as the x-api-key header. An empty key is a startup
	// warning, not an error; read-only endpoints may still work.
	APIKey string `yaml:"api_key"`
}

// RateLimitConfig tunes the token-bucket admission control.
type RateLimitConfig struct {
	// Enabled switches admission control on. Default: true.
	Enabled bool `yaml:"enabled"`

	// PerMinute is the sustained admission rate. Default: 60.
	PerMinute int `yaml:"per_minute"`

	// Burst is the bucket capacity. Default: 10.
	Burst int `yaml:"burst"`
}

// MetricsConfig controls the metrics collector and the scrape endpoint.
type MetricsConfig struct {
	// Enabled switches metrics collection and the HTTP endpoint on.
	// Default: true.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the address the /metrics and health endpoints listen
	// on. Default: ":9090".
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration, matching a local
// changedetection.io instance with no API key.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:5000",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerMinute: 60,
			Burst:     10,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}

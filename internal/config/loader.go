package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path on top of the defaults,
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults,
// applies environment overrides, and validates the result. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and environment variables
// alone, for deployments without a config file.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the recognised environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHANGEDETECTION_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CHANGEDETECTION_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Server.Debug = envBool(v)
	}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = envBool(v)
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.PerMinute = n
		} else {
			slog.Warn("ignoring non-numeric RATE_LIMIT_PER_MINUTE", "value", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		} else {
			slog.Warn("ignoring non-numeric RATE_LIMIT_BURST", "value", v)
		}
	}
	if v := os.Getenv("ENABLE_METRICS"); v != "" {
		cfg.Metrics.Enabled = envBool(v)
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.ListenAddr = fmt.Sprintf(":%d", n)
		} else {
			slog.Warn("ignoring non-numeric METRICS_PORT", "value", v)
		}
	}
}

// envBool parses the permissive boolean syntax used by the environment
// interface: "true"/"1"/"yes" are true, everything else is false.
func envBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url is required"))
	} else if u, err := url.Parse(cfg.Upstream.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url %q is not a valid http(s) URL", cfg.Upstream.BaseURL))
	}

	if cfg.Upstream.APIKey == "" {
		slog.Warn("CHANGEDETECTION_API_KEY not set, some operations may fail")
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.PerMinute <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.per_minute %d must be positive when rate limiting is enabled", cfg.RateLimit.PerMinute))
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.burst %d must be positive when rate limiting is enabled", cfg.RateLimit.Burst))
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

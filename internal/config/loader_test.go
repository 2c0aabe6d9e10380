package config

import (
	"strings"
	"testing"
)

const sampleYAML = `
server:
  log_level: debug
  debug: true
upstream:
  base_url: "https://watcher.example.com"
  api_key: "secret-key"
rate_limit:
  enabled: true
  per_minute: 120
  burst: 20
metrics:
  enabled: false
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if !cfg.Server.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Upstream.BaseURL != "https://watcher.example.com" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.APIKey != "secret-key" {
		t.Errorf("APIKey = %q", cfg.Upstream.APIKey)
	}
	if cfg.RateLimit.PerMinute != 120 || cfg.RateLimit.Burst != 20 {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	def := Default()
	if cfg.Upstream.BaseURL != def.Upstream.BaseURL {
		t.Errorf("BaseURL = %q, want default %q", cfg.Upstream.BaseURL, def.Upstream.BaseURL)
	}
	if cfg.RateLimit != def.RateLimit {
		t.Errorf("RateLimit = %+v, want default %+v", cfg.RateLimit, def.RateLimit)
	}
	if cfg.Metrics != def.Metrics {
		t.Errorf("Metrics = %+v, want default %+v", cfg.Metrics, def.Metrics)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("upstram:\n  base_url: x\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHANGEDETECTION_URL", "http://cd.internal:5000")
	t.Setenv("CHANGEDETECTION_API_KEY", "env-key")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("DEBUG", "true")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ENABLE_METRICS", "yes")
	t.Setenv("METRICS_PORT", "9191")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://cd.internal:5000" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.APIKey != "env-key" {
		t.Errorf("APIKey = %q", cfg.Upstream.APIKey)
	}
	if cfg.Server.LogLevel != LogWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.Server.LogLevel)
	}
	if !cfg.Server.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.ListenAddr != ":9191" {
		t.Errorf("ListenAddr = %q, want :9191", cfg.Metrics.ListenAddr)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("CHANGEDETECTION_URL", "http://from-env:5000")
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://from-env:5000" {
		t.Errorf("BaseURL = %q, want env value to win over file", cfg.Upstream.BaseURL)
	}
}

func TestEnvIgnoresNonNumeric(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "lots")
	t.Setenv("RATE_LIMIT_BURST", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.RateLimit.PerMinute != Default().RateLimit.PerMinute {
		t.Errorf("PerMinute = %d, want default preserved", cfg.RateLimit.PerMinute)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "log_level"},
		{"empty base url", func(c *Config) { c.Upstream.BaseURL = "" }, "base_url is required"},
		{"non-http base url", func(c *Config) { c.Upstream.BaseURL = "ftp://host" }, "base_url"},
		{"garbage base url", func(c *Config) { c.Upstream.BaseURL = "http://" }, "base_url"},
		{"zero rate", func(c *Config) { c.RateLimit.PerMinute = 0 }, "per_minute"},
		{"negative burst", func(c *Config) { c.RateLimit.Burst = -1 }, "burst"},
		{"rate ignored when disabled", func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.PerMinute = 0
			c.RateLimit.Burst = 0
		}, ""},
		{"metrics addr required", func(c *Config) { c.Metrics.ListenAddr = "" }, "listen_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.LogLevel = "chatty"
	cfg.Upstream.BaseURL = ""
	cfg.RateLimit.Burst = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log_level", "base_url", "burst"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

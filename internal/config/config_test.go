package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name   string
		check  func(*Config) bool
		expect string
	}{
		{
			name:   "default environment is development",
			check:  func(c *Config) bool { return c.Environment == "development" },
			expect: "development",
		},
		{
			name:   "default host is 0.0.0.0",
			check:  func(c *Config) bool { return c.Host == "0.0.0.0" },
			expect: "0.0.0.0",
		},
		{
			name:   "default port is 8080",
			check:  func(c *Config) bool { return c.Port == 8080 },
			expect: "8080",
		},
		{
			name:   "default log level is info",
			check:  func(c *Config) bool { return c.LogLevel == "info" },
			expect: "info",
		},
		{
			name:   "default log format is json",
			check:  func(c *Config) bool { return c.LogFormat == "json" },
			expect: "json",
		},
		{
			name:   "default metrics path",
			check:  func(c *Config) bool { return c.MetricsPath == "/metrics" },
			expect: "/metrics",
		},
		{
			name:   "default JWT access TTL is 15m",
			check:  func(c *Config) bool { return c.JWTAccessTTL == 15*time.Minute },
			expect: "15m0s",
		},
		{
			name:   "default JWT refresh TTL is 7 days",
			check:  func(c *Config) bool { return c.JWTRefreshTTL == 168*time.Hour },
			expect: "168h0m0s",
		},
		{
			name:   "listen addr format",
			check:  func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" },
			expect: "0.0.0.0:8080",
		},
		{
			name:   "not production by default",
			check:  func(c *Config) bool { return !c.IsProduction() },
			expect: "false",
		},
		{
			name:   "default mode is api",
			check:  func(c *Config) bool { return c.Mode == "api" },
			expect: "api",
		},
		{
			name:   "default approval sweep interval is 1m",
			check:  func(c *Config) bool { return c.ApprovalSweepInterval == time.Minute },
			expect: "1m0s",
		},
		{
			name:   "Notion database id is empty by default",
			check:  func(c *Config) bool { return c.NotionDatabaseID == "" },
			expect: "",
		},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("expected %s", tt.expect)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{Environment: "production"}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to be true when Environment=production")
	}
}

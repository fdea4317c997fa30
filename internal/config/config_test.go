package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "120")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.ReportCacheTTLSeconds != 120 {
		t.Fatalf("report cache ttl = %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("address = %q", cfg.Address())
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := NewLogger("nivel-raro")
	if logger == nil {
		t.Fatalf("nil logger")
	}
	if logger.GetLevel().String() != "info" {
		t.Fatalf("level = %s", logger.GetLevel())
	}
}

package config_test

import (
	"log/slog"
	"testing"

	"github.com/nurbekov/engage-scheduler/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPS_JWT_SECRET", testSecret)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "local" {
		t.Errorf("Env = %q, want local", cfg.Env)
	}
	if cfg.SchedulePath != "data/schedule.json" {
		t.Errorf("SchedulePath = %q", cfg.SchedulePath)
	}
	if cfg.FeedURL != "https://x.com/home" {
		t.Errorf("FeedURL = %q", cfg.FeedURL)
	}
	if !cfg.RetweetAssumeDirect || !cfg.CommentPartialOnTypeFail {
		t.Error("soft-failure policies should default on")
	}
	if cfg.ImmediateRetryDelaySec != 5 {
		t.Errorf("ImmediateRetryDelaySec = %d, want 5", cfg.ImmediateRetryDelaySec)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("OPS_JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without OPS_JWT_SECRET")
	}
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("OPS_JWT_SECRET", "too-short")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for secret under 32 bytes")
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("OPS_JWT_SECRET", testSecret)
	t.Setenv("ENV", "chaos")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown ENV value")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		c := config.Config{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package config

import (
	"testing"
	"time"
)

func TestGetDurationAcceptsSecondsAndDurations(t *testing.T) {
	t.Setenv("TEST_DURATION_SECONDS", "15")
	t.Setenv("TEST_DURATION_STRING", "1m30s")
	t.Setenv("TEST_DURATION_BROKEN", "soon")

	if got := GetDuration("TEST_DURATION_SECONDS", time.Second); got != 15*time.Second {
		t.Fatalf("expected 15s, got %s", got)
	}
	if got := GetDuration("TEST_DURATION_STRING", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := GetDuration("TEST_DURATION_BROKEN", 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected fallback for invalid value, got %s", got)
	}
	if got := GetDuration("TEST_DURATION_UNSET", 4*time.Second); got != 4*time.Second {
		t.Fatalf("expected fallback for unset value, got %s", got)
	}
}

func TestGetIntFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	if got := GetInt("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	t.Setenv("TEST_INT", " 42 ")
	if got := GetInt("TEST_INT", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("API_HOST", "0.0.0.0")
	t.Setenv("API_PORT", "8000")
	cfg := LoadAPIConfig()
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.WriteRateLimit <= 0 {
		t.Fatalf("expected positive write rate limit, got %d", cfg.WriteRateLimit)
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !GetBool("TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if GetBool("TEST_BOOL", false) {
		t.Fatal("expected fallback for invalid value")
	}
}

func TestLoadStackConfigOverrides(t *testing.T) {
	t.Setenv("STACK_RUNTIME", "kubernetes")
	t.Setenv("STACK_SMOKE_TIMEOUT", "5")
	t.Setenv("API_TOKEN_TTL", "1h")
	cfg := LoadStackConfig()
	if cfg.Runtime != "kubernetes" || cfg.SmokeTimeout != 5*time.Second || cfg.TokenTTL != time.Hour {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.StackFile != "stack.yaml" {
		t.Fatalf("unexpected default stack file %q", cfg.StackFile)
	}
}

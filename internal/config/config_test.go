package config

import (
	"testing"
	"time"

	"printsmart/internal/store"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Error("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 8420 {
		t.Errorf("expected HTTPPort 8420, got %d", cfg.HTTPPort)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("expected SweepInterval 1m, got %v", cfg.SweepInterval)
	}
	if cfg.PendingTimeout != 30*time.Minute {
		t.Errorf("expected PendingTimeout 30m, got %v", cfg.PendingTimeout)
	}
	if cfg.ProcessingTimeout != time.Hour {
		t.Errorf("expected ProcessingTimeout 1h, got %v", cfg.ProcessingTimeout)
	}
	if cfg.AbandonedThreshold != 7*24*time.Hour {
		t.Errorf("expected AbandonedThreshold 168h, got %v", cfg.AbandonedThreshold)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.StalenessWindow != 90*time.Second {
		t.Errorf("expected StalenessWindow 90s, got %v", cfg.StalenessWindow)
	}
	if cfg.OTELEndpoint != "localhost:4317" {
		t.Errorf("expected OTELEndpoint localhost:4317, got %s", cfg.OTELEndpoint)
	}
	if got := cfg.PriorityMultipliers[10]; got != 5.0 {
		t.Errorf("expected priority 10 multiplier 5.0, got %v", got)
	}
	if got := cfg.ClassMultipliers[store.DeviceClassDotMatrix]; got != 2.0 {
		t.Errorf("expected dot_matrix multiplier 2.0, got %v", got)
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("PORT", "9000")
	t.Setenv("PENDING_TIMEOUT", "10m")
	t.Setenv("PRIORITY_MULTIPLIERS", "1:0.25,10:8.0")
	t.Setenv("CLASS_MULTIPLIERS", "thermal:0.5")
	t.Setenv("WEBHOOK_URLS", "http://a.example/hook, http://b.example/hook")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9000 {
		t.Errorf("expected HTTPPort 9000, got %d", cfg.HTTPPort)
	}
	if cfg.PendingTimeout != 10*time.Minute {
		t.Errorf("expected PendingTimeout 10m, got %v", cfg.PendingTimeout)
	}
	if got := cfg.PriorityMultipliers[1]; got != 0.25 {
		t.Errorf("expected priority 1 multiplier 0.25, got %v", got)
	}
	// Overrides merge with defaults rather than replacing the table.
	if got := cfg.PriorityMultipliers[5]; got != 1.0 {
		t.Errorf("expected untouched priority 5 multiplier 1.0, got %v", got)
	}
	if got := cfg.ClassMultipliers[store.DeviceClassThermal]; got != 0.5 {
		t.Errorf("expected thermal multiplier 0.5, got %v", got)
	}
	if len(cfg.WebhookURLs) != 2 {
		t.Errorf("expected 2 webhook urls, got %v", cfg.WebhookURLs)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad duration", "SWEEP_INTERVAL", "fast"},
		{"bad priority key", "PRIORITY_MULTIPLIERS", "11:1.0"},
		{"negative multiplier", "PRIORITY_MULTIPLIERS", "1:-0.5"},
		{"malformed class pair", "CLASS_MULTIPLIERS", "laser"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

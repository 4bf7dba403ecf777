// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"printsmart/internal/store"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Shared secret for /internal endpoints (dispatch result reports)
	InternalToken string

	// OTLP collector address for traces
	OTELEndpoint string

	// Orchestrator sweep loop
	SweepInterval      time.Duration
	PendingTimeout     time.Duration
	ProcessingTimeout  time.Duration
	AbandonedThreshold time.Duration
	MaxRetries         int

	// Timeout policy modulation. Keys are job priority (1..10) and
	// device class; values scale the base timeouts.
	PriorityMultipliers map[int]float64
	ClassMultipliers    map[store.DeviceClass]float64

	// How old a probe reading may be and still be trusted for admission
	StalenessWindow time.Duration

	// Device health monitor
	ProbeInterval        time.Duration
	ProbeLivenessTimeout time.Duration
	ProbeServiceTimeout  time.Duration
	ProbeConcurrency     int

	// Event fan-out targets, comma separated
	WebhookURLs []string
}

// Default timeout modulation, mirroring the shipped policy: urgent jobs
// get a short fuse, background jobs a long one; slow device classes get
// more slack.
func defaultPriorityMultipliers() map[int]float64 {
	return map[int]float64{
		1: 0.5, 2: 0.7, 3: 0.9, 4: 1.0, 5: 1.0,
		6: 1.2, 7: 1.5, 8: 2.0, 9: 3.0, 10: 5.0,
	}
}

func defaultClassMultipliers() map[store.DeviceClass]float64 {
	return map[store.DeviceClass]float64{
		store.DeviceClassLaser:     1.0,
		store.DeviceClassInkjet:    1.5,
		store.DeviceClassThermal:   0.8,
		store.DeviceClassDotMatrix: 2.0,
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		DatabaseURL:         dbURL,
		InternalToken:       os.Getenv("INTERNAL_TOKEN"),
		OTELEndpoint:        envString("OTEL_ENDPOINT", "localhost:4317"),
		PriorityMultipliers: defaultPriorityMultipliers(),
		ClassMultipliers:    defaultClassMultipliers(),
	}

	var err error
	if cfg.HTTPPort, err = envInt("PORT", 8420); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PendingTimeout, err = envDuration("PENDING_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProcessingTimeout, err = envDuration("PROCESSING_TIMEOUT", time.Hour); err != nil {
		return nil, err
	}
	if cfg.AbandonedThreshold, err = envDuration("ABANDONED_THRESHOLD", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.StalenessWindow, err = envDuration("STALENESS_WINDOW", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = envDuration("PROBE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProbeLivenessTimeout, err = envDuration("PROBE_LIVENESS_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeServiceTimeout, err = envDuration("PROBE_SERVICE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProbeConcurrency, err = envInt("PROBE_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	if err := parseMultipliers(os.Getenv("PRIORITY_MULTIPLIERS"), cfg); err != nil {
		return nil, err
	}
	if err := parseClassMultipliers(os.Getenv("CLASS_MULTIPLIERS"), cfg); err != nil {
		return nil, err
	}

	if urls := os.Getenv("WEBHOOK_URLS"); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.WebhookURLs = append(cfg.WebhookURLs, u)
			}
		}
	}

	return cfg, nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

// parseMultipliers accepts overrides like "1:0.5,5:1.0,10:5.0".
func parseMultipliers(raw string, cfg *Config) error {
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return fmt.Errorf("invalid PRIORITY_MULTIPLIERS entry %q", pair)
		}
		priority, err := strconv.Atoi(k)
		if err != nil || priority < 1 || priority > 10 {
			return fmt.Errorf("invalid priority %q in PRIORITY_MULTIPLIERS", k)
		}
		mult, err := strconv.ParseFloat(v, 64)
		if err != nil || mult <= 0 {
			return fmt.Errorf("invalid multiplier %q in PRIORITY_MULTIPLIERS", v)
		}
		cfg.PriorityMultipliers[priority] = mult
	}
	return nil
}

// parseClassMultipliers accepts overrides like "laser:1.0,inkjet:1.5".
func parseClassMultipliers(raw string, cfg *Config) error {
	if raw == "" {
		return nil
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return fmt.Errorf("invalid CLASS_MULTIPLIERS entry %q", pair)
		}
		mult, err := strconv.ParseFloat(v, 64)
		if err != nil || mult <= 0 {
			return fmt.Errorf("invalid multiplier %q in CLASS_MULTIPLIERS", v)
		}
		cfg.ClassMultipliers[store.DeviceClass(k)] = mult
	}
	return nil
}

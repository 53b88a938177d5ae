package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"SOCIALCONNECT_TEST_PORT" envDefault:"123"`
}

type prefixedTestConfig struct {
	SweepInterval time.Duration `env:"TEST_SWEEP_INTERVAL" envDefault:"5m"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("SOCIALCONNECT_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParsePrefixedEnvReadsPrefixedName(t *testing.T) {
	t.Setenv("SOCIALCONNECT_TEST_SWEEP_INTERVAL", "30s")
	t.Setenv("TEST_SWEEP_INTERVAL", "1h")

	var cfg prefixedTestConfig
	if err := ParsePrefixedEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Fatalf("sweep interval = %v, want 30s", cfg.SweepInterval)
	}
}

package config

import (
	"context"
	"testing"
)

func TestLoad_RequiresSelfAddr(t *testing.T) {
	t.Setenv("MESHNODE_SELF_ADDR", "")
	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error when SELF_ADDR is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MESHNODE_SELF_ADDR", "EC:62:60:93:C7:A8")
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RadioMode != RadioModeFSRelay {
		t.Errorf("RadioMode = %q, want %q", cfg.RadioMode, RadioModeFSRelay)
	}
	if cfg.RelayDir == "" {
		t.Error("expected a default RelayDir")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	addr, err := cfg.Address()
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr.String() != "EC:62:60:93:C7:A8" {
		t.Errorf("Address() = %v", addr)
	}
}

func TestIdentitySeed_EmptyWhenUnset(t *testing.T) {
	cfg := &Config{}
	seed, err := cfg.IdentitySeed()
	if err != nil {
		t.Fatalf("IdentitySeed: %v", err)
	}
	if seed != nil {
		t.Errorf("expected nil seed, got %v", seed)
	}
}

func TestIdentitySeed_Invalid(t *testing.T) {
	cfg := &Config{IdentitySeedHex: "not-hex"}
	if _, err := cfg.IdentitySeed(); err == nil {
		t.Fatal("expected error decoding invalid hex")
	}
}

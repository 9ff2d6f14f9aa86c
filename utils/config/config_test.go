package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Reconciler.SweepInterval != 10*time.Second {
		t.Fatalf("sweep interval = %v, want 10s", cfg.Reconciler.SweepInterval)
	}
	if cfg.Reconciler.ActivityTimeout != 60*time.Second {
		t.Fatalf("activity timeout = %v, want 60s", cfg.Reconciler.ActivityTimeout)
	}
	if cfg.Preflight.AgentBinary != "codex" {
		t.Fatalf("agent binary = %q, want codex", cfg.Preflight.AgentBinary)
	}
	if len(cfg.Preflight.RequiredTools) != 4 {
		t.Fatalf("required tools = %v", cfg.Preflight.RequiredTools)
	}
	if cfg.Vault.UnlockAttempts != 3 {
		t.Fatalf("unlock attempts = %d, want 3", cfg.Vault.UnlockAttempts)
	}
	if cfg.LogRetention.Days != 30 {
		t.Fatalf("log retention = %d, want 30", cfg.LogRetention.Days)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("BEACON_SERVER_PORT", "9000")
	t.Setenv("BEACON_SWEEP_INTERVAL", "5s")
	t.Setenv("BEACON_ACTIVITY_TIMEOUT", "2m")
	t.Setenv("BEACON_REQUIRED_TOOLS", "jq, rsync")
	t.Setenv("BEACON_AGENT_BINARY", "otto")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Fatalf("port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Reconciler.SweepInterval != 5*time.Second {
		t.Fatalf("sweep interval = %v, want 5s", cfg.Reconciler.SweepInterval)
	}
	if cfg.Reconciler.ActivityTimeout != 2*time.Minute {
		t.Fatalf("activity timeout = %v, want 2m", cfg.Reconciler.ActivityTimeout)
	}
	if len(cfg.Preflight.RequiredTools) != 2 || cfg.Preflight.RequiredTools[1] != "rsync" {
		t.Fatalf("required tools = %v", cfg.Preflight.RequiredTools)
	}
	if cfg.Preflight.AgentBinary != "otto" {
		t.Fatalf("agent binary = %q, want otto", cfg.Preflight.AgentBinary)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BEACON_SWEEP_INTERVAL", "sometimes")
	t.Setenv("BEACON_UNLOCK_ATTEMPTS", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reconciler.SweepInterval != 10*time.Second {
		t.Fatalf("sweep interval = %v, want default 10s", cfg.Reconciler.SweepInterval)
	}
	if cfg.Vault.UnlockAttempts != 3 {
		t.Fatalf("unlock attempts = %d, want default 3", cfg.Vault.UnlockAttempts)
	}
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("BEACON_ACTIVITY_TIMEOUT", "2s")
	t.Setenv("BEACON_SWEEP_INTERVAL", "10s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error when timeout < sweep interval")
	}
}

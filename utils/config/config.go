// Package config handles environment-based configuration for Beacon.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete Beacon configuration loaded from environment variables.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Reconciler   ReconcilerConfig
	Tunnel       TunnelConfig
	Preflight    PreflightConfig
	Vault        VaultConfig
	LogRetention LogRetentionConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
	Mode string // "debug" or "release"
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string
}

// ReconcilerConfig contains status reconciliation settings.
type ReconcilerConfig struct {
	SweepInterval   time.Duration
	ActivityTimeout time.Duration
	ProbeWindow     time.Duration
}

// TunnelConfig contains tunnel health monitoring settings.
type TunnelConfig struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// PreflightConfig contains readiness inspection settings.
type PreflightConfig struct {
	RequiredTools []string
	RequiredHooks []string
	AgentBinary   string
	SSHTimeout    time.Duration
}

// VaultConfig contains credential vault settings.
type VaultConfig struct {
	ServiceName    string
	UnlockAttempts int
	UnlockDelay    time.Duration
}

// LogRetentionConfig contains activity log retention settings.
type LogRetentionConfig struct {
	Days int
}

// Load reads configuration from environment variables with sensible defaults.
// All environment variables use the BEACON_ prefix.
//
// Configuration variables:
//   - BEACON_SERVER_HOST (default: "0.0.0.0")
//   - BEACON_SERVER_PORT (default: "8080")
//   - BEACON_SERVER_MODE (default: "debug")
//   - BEACON_DB_PATH (default: "/app/data/beacon.db" or "./beacon.db")
//   - BEACON_SWEEP_INTERVAL (default: "10s")
//   - BEACON_ACTIVITY_TIMEOUT (default: "60s")
//   - BEACON_PROBE_WINDOW (default: "45s")
//   - BEACON_TUNNEL_PROBE_INTERVAL (default: "30s")
//   - BEACON_TUNNEL_PROBE_TIMEOUT (default: "5s")
//   - BEACON_REQUIRED_TOOLS (default: "jq,curl,python3,bash")
//   - BEACON_REQUIRED_HOOKS (default: "session-start,session-end,notification,pre-command,post-command")
//   - BEACON_AGENT_BINARY (default: "codex")
//   - BEACON_SSH_TIMEOUT (default: "10s")
//   - BEACON_KEYCHAIN_SERVICE (default: "beacon-machine")
//   - BEACON_UNLOCK_ATTEMPTS (default: "3")
//   - BEACON_UNLOCK_DELAY (default: "2s")
//   - BEACON_LOG_RETENTION_DAYS (default: "30")
//
// Returns an error if validation fails.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("BEACON_SERVER_HOST", "0.0.0.0"),
			Port: getEnv("BEACON_SERVER_PORT", "8080"),
			Mode: getEnv("BEACON_SERVER_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Path: getDBPath(),
		},
		Reconciler: ReconcilerConfig{
			SweepInterval:   getEnvDuration("BEACON_SWEEP_INTERVAL", 10*time.Second),
			ActivityTimeout: getEnvDuration("BEACON_ACTIVITY_TIMEOUT", 60*time.Second),
			ProbeWindow:     getEnvDuration("BEACON_PROBE_WINDOW", 45*time.Second),
		},
		Tunnel: TunnelConfig{
			ProbeInterval: getEnvDuration("BEACON_TUNNEL_PROBE_INTERVAL", 30*time.Second),
			ProbeTimeout:  getEnvDuration("BEACON_TUNNEL_PROBE_TIMEOUT", 5*time.Second),
		},
		Preflight: PreflightConfig{
			RequiredTools: getEnvList("BEACON_REQUIRED_TOOLS", []string{"jq", "curl", "python3", "bash"}),
			RequiredHooks: getEnvList("BEACON_REQUIRED_HOOKS", []string{
				"session-start", "session-end", "notification", "pre-command", "post-command",
			}),
			AgentBinary: getEnv("BEACON_AGENT_BINARY", "codex"),
			SSHTimeout:  getEnvDuration("BEACON_SSH_TIMEOUT", 10*time.Second),
		},
		Vault: VaultConfig{
			ServiceName:    getEnv("BEACON_KEYCHAIN_SERVICE", "beacon-machine"),
			UnlockAttempts: getEnvInt("BEACON_UNLOCK_ATTEMPTS", 3),
			UnlockDelay:    getEnvDuration("BEACON_UNLOCK_DELAY", 2*time.Second),
		},
		LogRetention: LogRetentionConfig{
			Days: getEnvInt("BEACON_LOG_RETENTION_DAYS", 30),
		},
	}

	// Validate configuration
	if err := validate(cfg); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		return nil, errors.New("invalid configuration")
	}

	// Log loaded configuration
	log.Printf("Configuration loaded:")
	log.Printf("  Server: %s:%s (mode: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Server.Mode)
	log.Printf("  Database: %s", cfg.Database.Path)
	log.Printf("  Reconciler: sweep=%v, timeout=%v, probe_window=%v",
		cfg.Reconciler.SweepInterval, cfg.Reconciler.ActivityTimeout, cfg.Reconciler.ProbeWindow)
	log.Printf("  Tunnels: probe_interval=%v, probe_timeout=%v",
		cfg.Tunnel.ProbeInterval, cfg.Tunnel.ProbeTimeout)
	log.Printf("  Preflight: tools=%v, hooks=%d, agent=%s",
		cfg.Preflight.RequiredTools, len(cfg.Preflight.RequiredHooks), cfg.Preflight.AgentBinary)
	log.Printf("  Log Retention: %d days", cfg.LogRetention.Days)

	return cfg, nil
}

// validate checks if the configuration is valid.
func validate(cfg *Config) error {
	if cfg.Reconciler.SweepInterval < time.Second {
		return errors.New("sweep interval must be at least 1 second")
	}
	if cfg.Reconciler.ActivityTimeout < cfg.Reconciler.SweepInterval {
		return errors.New("activity timeout must not be shorter than the sweep interval")
	}
	if cfg.Tunnel.ProbeInterval < time.Second {
		return errors.New("tunnel probe interval must be at least 1 second")
	}
	if cfg.Vault.UnlockAttempts < 1 {
		return errors.New("unlock attempts must be at least 1")
	}
	if len(cfg.Preflight.RequiredTools) == 0 {
		return errors.New("required tools list must not be empty")
	}
	if cfg.LogRetention.Days < 1 {
		return errors.New("log retention days must be at least 1")
	}

	return nil
}

// getDBPath determines the database path based on environment and filesystem.
// Priority:
//  1. BEACON_DB_PATH environment variable
//  2. /app/data/beacon.db (if /app/data exists - container deployment)
//  3. ./beacon.db (development fallback)
func getDBPath() string {
	// Check environment variable first
	if path := os.Getenv("BEACON_DB_PATH"); path != "" {
		return path
	}

	// Check if running in container
	if _, err := os.Stat("/app/data"); err == nil {
		return "/app/data/beacon.db"
	}

	// Development fallback
	return "./beacon.db"
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
// Accepts values like "30s", "5m", "1h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns a
// default value. Empty items are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		log.Printf("Warning: empty list value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return items
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to clear all config-related env vars
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"CADENCE_PORT",
		"CADENCE_READ_TIMEOUT",
		"CADENCE_WRITE_TIMEOUT",
		"CADENCE_SHUTDOWN_TIMEOUT",
		"CADENCE_DB_PATH",
		"OPENAI_API_KEY",
		"CADENCE_SUGGESTION_MODEL",
		"CADENCE_API_KEY",
		"CADENCE_SMTP_HOST",
		"CADENCE_SMTP_PORT",
		"CADENCE_SMTP_FROM",
		"CADENCE_SMTP_USERNAME",
		"CADENCE_SMTP_PASSWORD",
		"TWILIO_ACCOUNT_SID",
		"TWILIO_AUTH_TOKEN",
		"CADENCE_SMS_FROM",
		"CADENCE_NOTIFY_MAX_ATTEMPTS",
		"CADENCE_NOTIFY_RETRY_BASE",
		"CADENCE_CRITICAL_MODE_INTERVAL",
		"CADENCE_CRITICAL_OVERDUE_THRESHOLD",
		"CADENCE_RECOVERY_INTERVAL",
		"CADENCE_INACTIVITY_DAYS",
		"CADENCE_TIMETABLE_HOUR_UTC",
		"CADENCE_NUDGE_INTERVAL",
		"CADENCE_NUDGE_BATCH_SIZE",
		"CADENCE_SNAPSHOT_HOUR_UTC",
		"CADENCE_SNAPSHOT_ENDPOINT",
		"CADENCE_SNAPSHOT_BUCKET",
		"CADENCE_SNAPSHOT_ACCESS_KEY",
		"CADENCE_SNAPSHOT_SECRET_KEY",
		"CADENCE_SNAPSHOT_USE_SSL",
		"CADENCE_LOG_LEVEL",
		"CADENCE_LOG_FORMAT",
		"CADENCE_CONFIG_PATH",
		"CADENCE_DEV_MODE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

// Helper to set dev mode for testing without required secrets
func setDevModeEnv(t *testing.T) {
	t.Helper()
	os.Setenv("CADENCE_DEV_MODE", "true")
}

// dur converts Duration to time.Duration for comparison
func dur(d Duration) time.Duration {
	return time.Duration(d)
}

// Test: Default values when no config file and no env vars (dev mode)
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "data/cadence.db" {
		t.Errorf("Database.Path = %q, want data/cadence.db", cfg.Database.Path)
	}
	if cfg.Suggestion.Model != "gpt-4o-mini" {
		t.Errorf("Suggestion.Model = %q, want gpt-4o-mini", cfg.Suggestion.Model)
	}
	if dur(cfg.Worker.CriticalModeInterval) != 15*time.Minute {
		t.Errorf("Worker.CriticalModeInterval = %v, want 15m", dur(cfg.Worker.CriticalModeInterval))
	}
	if cfg.Worker.CriticalOverdueThreshold != 3 {
		t.Errorf("Worker.CriticalOverdueThreshold = %d, want 3", cfg.Worker.CriticalOverdueThreshold)
	}
	if dur(cfg.Worker.RecoveryInterval) != 6*time.Hour {
		t.Errorf("Worker.RecoveryInterval = %v, want 6h", dur(cfg.Worker.RecoveryInterval))
	}
	if cfg.Worker.TimetableHourUTC != 4 {
		t.Errorf("Worker.TimetableHourUTC = %d, want 4", cfg.Worker.TimetableHourUTC)
	}
	if cfg.Worker.NudgeBatchSize != 50 {
		t.Errorf("Worker.NudgeBatchSize = %d, want 50", cfg.Worker.NudgeBatchSize)
	}
	if cfg.Notification.MaxAttempts != 3 {
		t.Errorf("Notification.MaxAttempts = %d, want 3", cfg.Notification.MaxAttempts)
	}
	if dur(cfg.Notification.RetryBase) != 2*time.Second {
		t.Errorf("Notification.RetryBase = %v, want 2s", dur(cfg.Notification.RetryBase))
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

// Test: YAML file overrides defaults
func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	defer clearEnv(t)

	yamlContent := `
server:
  port: 9090
  read_timeout: 45s
database:
  path: /tmp/coach.db
worker:
  critical_mode_interval: 5m
  critical_overdue_threshold: 5
  nudge_batch_size: 25
notification:
  max_attempts: 4
  retry_base: 500ms
`
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 45s", dur(cfg.Server.ReadTimeout))
	}
	if cfg.Database.Path != "/tmp/coach.db" {
		t.Errorf("Database.Path = %q, want /tmp/coach.db", cfg.Database.Path)
	}
	if dur(cfg.Worker.CriticalModeInterval) != 5*time.Minute {
		t.Errorf("Worker.CriticalModeInterval = %v, want 5m", dur(cfg.Worker.CriticalModeInterval))
	}
	if cfg.Worker.CriticalOverdueThreshold != 5 {
		t.Errorf("Worker.CriticalOverdueThreshold = %d, want 5", cfg.Worker.CriticalOverdueThreshold)
	}
	if cfg.Worker.NudgeBatchSize != 25 {
		t.Errorf("Worker.NudgeBatchSize = %d, want 25", cfg.Worker.NudgeBatchSize)
	}
	if cfg.Notification.MaxAttempts != 4 {
		t.Errorf("Notification.MaxAttempts = %d, want 4", cfg.Notification.MaxAttempts)
	}
	// Unset YAML keys keep defaults
	if cfg.Worker.TimetableHourUTC != 4 {
		t.Errorf("Worker.TimetableHourUTC = %d, want default 4", cfg.Worker.TimetableHourUTC)
	}
}

// Test: env vars override YAML values
func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	defer clearEnv(t)

	yamlContent := `
server:
  port: 9090
`
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("CADENCE_PORT", "7070")
	os.Setenv("CADENCE_NUDGE_INTERVAL", "30m")
	os.Setenv("OPENAI_API_KEY", "sk-test-key")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if dur(cfg.Worker.NudgeInterval) != 30*time.Minute {
		t.Errorf("Worker.NudgeInterval = %v, want 30m", dur(cfg.Worker.NudgeInterval))
	}
	if cfg.Suggestion.APIKey != "sk-test-key" {
		t.Errorf("Suggestion.APIKey = %q, want sk-test-key", cfg.Suggestion.APIKey)
	}
}

// Test: production mode requires the auth API key
func TestLoad_RequiresAPIKeyInProduction(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error without CADENCE_API_KEY")
	}
	if !strings.Contains(err.Error(), "CADENCE_API_KEY") {
		t.Errorf("error = %v, want mention of CADENCE_API_KEY", err)
	}
}

// Test: invalid values are rejected
func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"zero threshold", map[string]string{"CADENCE_CRITICAL_OVERDUE_THRESHOLD": "0"}},
		{"zero batch size", map[string]string{"CADENCE_NUDGE_BATCH_SIZE": "0"}},
		{"bad timetable hour", map[string]string{"CADENCE_TIMETABLE_HOUR_UTC": "24"}},
		{"bad snapshot hour", map[string]string{"CADENCE_SNAPSHOT_HOUR_UTC": "-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			setDevModeEnv(t)
			defer clearEnv(t)
			for k, v := range tc.env {
				os.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected validation error for %s", tc.name)
			}
		})
	}
}

// Test: invalid duration strings in YAML are rejected
func TestDuration_InvalidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	defer clearEnv(t)

	yamlContent := `
server:
  read_timeout: not-a-duration
`
	path := filepath.Join(t.TempDir(), "cadence.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("LoadFromFile() expected error for invalid duration")
	}
}

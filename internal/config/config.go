package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Suggestion   SuggestionConfig   `yaml:"suggestion"`
	Auth         AuthConfig         `yaml:"auth"`
	Notification NotificationConfig `yaml:"notification"`
	Worker       WorkerConfig       `yaml:"worker"`
	Snapshot     SnapshotConfig     `yaml:"snapshot"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SuggestionConfig contains AI suggestion service settings.
type SuggestionConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
	Model  string `yaml:"model"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// NotificationConfig contains delivery channel settings.
type NotificationConfig struct {
	SMTP        SMTPConfig `yaml:"smtp"`
	SMS         SMSConfig  `yaml:"sms"`
	MaxAttempts int        `yaml:"max_attempts"`
	RetryBase   Duration   `yaml:"retry_base"`
}

// SMTPConfig contains email provider settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"-"` // env-only, never in YAML
	Password string `yaml:"-"` // env-only, never in YAML
}

// SMSConfig contains SMS provider settings.
type SMSConfig struct {
	AccountSID string `yaml:"-"` // env-only, never in YAML
	AuthToken  string `yaml:"-"` // env-only, never in YAML
	From       string `yaml:"from"`
	BaseURL    string `yaml:"base_url"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	CriticalModeInterval     Duration `yaml:"critical_mode_interval"`
	CriticalOverdueThreshold int      `yaml:"critical_overdue_threshold"`
	RecoveryInterval         Duration `yaml:"recovery_interval"`
	InactivityDays           int      `yaml:"inactivity_days"`
	TimetableHourUTC         int      `yaml:"timetable_hour_utc"`
	NudgeInterval            Duration `yaml:"nudge_interval"`
	NudgeBatchSize           int      `yaml:"nudge_batch_size"`
	SnapshotHourUTC          int      `yaml:"snapshot_hour_utc"`
}

// SnapshotConfig contains S3-compatible backup upload settings.
// An empty bucket disables uploads entirely (local-only mode).
type SnapshotConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    bool   `yaml:"use_ssl"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("CADENCE_CONFIG_PATH", "config/cadence.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used when the caller already knows the exact file.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/cadence.db",
		},
		Suggestion: SuggestionConfig{
			Model: "gpt-4o-mini",
		},
		Notification: NotificationConfig{
			SMTP: SMTPConfig{
				Port: 587,
				From: "coach@cadence.local",
			},
			SMS: SMSConfig{
				BaseURL: "https://api.twilio.com",
			},
			MaxAttempts: 3,
			RetryBase:   Duration(2 * time.Second),
		},
		Worker: WorkerConfig{
			CriticalModeInterval:     Duration(15 * time.Minute),
			CriticalOverdueThreshold: 3,
			RecoveryInterval:         Duration(6 * time.Hour),
			InactivityDays:           3,
			TimetableHourUTC:         4,
			NudgeInterval:            Duration(1 * time.Hour),
			NudgeBatchSize:           50,
			SnapshotHourUTC:          3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("CADENCE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CADENCE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CADENCE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CADENCE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("CADENCE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Suggestion (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Suggestion.APIKey = v
	}
	if v := os.Getenv("CADENCE_SUGGESTION_MODEL"); v != "" {
		cfg.Suggestion.Model = v
	}

	// Auth
	if v := os.Getenv("CADENCE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Notification
	if v := os.Getenv("CADENCE_SMTP_HOST"); v != "" {
		cfg.Notification.SMTP.Host = v
	}
	if v := os.Getenv("CADENCE_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Notification.SMTP.Port = port
		}
	}
	if v := os.Getenv("CADENCE_SMTP_FROM"); v != "" {
		cfg.Notification.SMTP.From = v
	}
	if v := os.Getenv("CADENCE_SMTP_USERNAME"); v != "" {
		cfg.Notification.SMTP.Username = v
	}
	if v := os.Getenv("CADENCE_SMTP_PASSWORD"); v != "" {
		cfg.Notification.SMTP.Password = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Notification.SMS.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Notification.SMS.AuthToken = v
	}
	if v := os.Getenv("CADENCE_SMS_FROM"); v != "" {
		cfg.Notification.SMS.From = v
	}
	if v := os.Getenv("CADENCE_NOTIFY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notification.MaxAttempts = n
		}
	}
	if v := os.Getenv("CADENCE_NOTIFY_RETRY_BASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Notification.RetryBase = Duration(d)
		}
	}

	// Worker
	if v := os.Getenv("CADENCE_CRITICAL_MODE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.CriticalModeInterval = Duration(d)
		}
	}
	if v := os.Getenv("CADENCE_CRITICAL_OVERDUE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.CriticalOverdueThreshold = n
		}
	}
	if v := os.Getenv("CADENCE_RECOVERY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.RecoveryInterval = Duration(d)
		}
	}
	if v := os.Getenv("CADENCE_INACTIVITY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.InactivityDays = n
		}
	}
	if v := os.Getenv("CADENCE_TIMETABLE_HOUR_UTC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.TimetableHourUTC = n
		}
	}
	if v := os.Getenv("CADENCE_NUDGE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.NudgeInterval = Duration(d)
		}
	}
	if v := os.Getenv("CADENCE_NUDGE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.NudgeBatchSize = n
		}
	}
	if v := os.Getenv("CADENCE_SNAPSHOT_HOUR_UTC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.SnapshotHourUTC = n
		}
	}

	// Snapshot storage
	if v := os.Getenv("CADENCE_SNAPSHOT_ENDPOINT"); v != "" {
		cfg.Snapshot.Endpoint = v
	}
	if v := os.Getenv("CADENCE_SNAPSHOT_BUCKET"); v != "" {
		cfg.Snapshot.Bucket = v
	}
	if v := os.Getenv("CADENCE_SNAPSHOT_ACCESS_KEY"); v != "" {
		cfg.Snapshot.AccessKey = v
	}
	if v := os.Getenv("CADENCE_SNAPSHOT_SECRET_KEY"); v != "" {
		cfg.Snapshot.SecretKey = v
	}
	if v := os.Getenv("CADENCE_SNAPSHOT_USE_SSL"); v != "" {
		cfg.Snapshot.UseSSL = v == "true" || v == "1"
	}

	// Log
	if v := os.Getenv("CADENCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CADENCE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (CADENCE_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Worker.CriticalOverdueThreshold < 1 {
		return errors.New("critical_overdue_threshold must be at least 1")
	}
	if c.Worker.NudgeBatchSize < 1 {
		return errors.New("nudge_batch_size must be at least 1")
	}
	if c.Worker.TimetableHourUTC < 0 || c.Worker.TimetableHourUTC > 23 {
		return fmt.Errorf("timetable_hour_utc %d out of range", c.Worker.TimetableHourUTC)
	}
	if c.Worker.SnapshotHourUTC < 0 || c.Worker.SnapshotHourUTC > 23 {
		return fmt.Errorf("snapshot_hour_utc %d out of range", c.Worker.SnapshotHourUTC)
	}
	if c.Notification.MaxAttempts < 1 {
		return errors.New("notification max_attempts must be at least 1")
	}

	// Dev mode bypasses API key validation
	if os.Getenv("CADENCE_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("CADENCE_API_KEY is required")
	}
	return nil
}

// getEnv returns the env var value or a default when unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

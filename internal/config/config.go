// ABOUTME: Configuration loading and parsing for session-gateway
// ABOUTME: Supports YAML and TOML files with env expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete session-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Gateway   GatewayConfig   `yaml:"gateway" toml:"gateway"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Watchdog  WatchdogConfig  `yaml:"watchdog" toml:"watchdog"`
	Alerts    AlertsConfig    `yaml:"alerts" toml:"alerts"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the ops API listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration for the ops API
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// GatewayConfig holds the external session gateway connection settings
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	APIKey  string        `yaml:"api_key" toml:"api_key"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// DatabaseConfig holds tenant store configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds ops API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// WatchdogConfig holds the session health-check policy knobs
type WatchdogConfig struct {
	Interval          time.Duration `yaml:"-" toml:"-"`
	ReconnectCooldown time.Duration `yaml:"-" toml:"-"`
	StartQRDelay      time.Duration `yaml:"-" toml:"-"`
	MaxFailures       int           `yaml:"max_failures" toml:"max_failures"`
	AlertThreshold    int           `yaml:"alert_threshold" toml:"alert_threshold"`
	GCSchedule        string        `yaml:"gc_schedule" toml:"gc_schedule"`

	// Raw string values for YAML/TOML unmarshaling
	IntervalRaw          string `yaml:"interval" toml:"interval"`
	ReconnectCooldownRaw string `yaml:"reconnect_cooldown" toml:"reconnect_cooldown"`
	StartQRDelayRaw      string `yaml:"start_qr_delay" toml:"start_qr_delay"`
}

// AlertsConfig holds alert sink configuration
type AlertsConfig struct {
	WebhookURL string       `yaml:"webhook_url" toml:"webhook_url"`
	Env        string       `yaml:"env" toml:"env"`
	Matrix     MatrixConfig `yaml:"matrix" toml:"matrix"`
}

// MatrixConfig holds the Matrix alert channel configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	RoomID      string `yaml:"room_id" toml:"room_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Watchdog policy defaults. A zero value for a knob in the file means
// "use the default".
const (
	DefaultWatchdogInterval  = time.Minute
	DefaultReconnectCooldown = 60 * time.Second
	DefaultStartQRDelay      = 2 * time.Second
	DefaultMaxFailures       = 5
	DefaultAlertThreshold    = 3
	DefaultGatewayTimeout    = 30 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. Files ending in
// .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for unset policy knobs.
func (c *Config) applyDefaults() {
	if c.Watchdog.Interval == 0 {
		c.Watchdog.Interval = DefaultWatchdogInterval
	}
	if c.Watchdog.ReconnectCooldown == 0 {
		c.Watchdog.ReconnectCooldown = DefaultReconnectCooldown
	}
	if c.Watchdog.StartQRDelay == 0 {
		c.Watchdog.StartQRDelay = DefaultStartQRDelay
	}
	if c.Watchdog.MaxFailures == 0 {
		c.Watchdog.MaxFailures = DefaultMaxFailures
	}
	if c.Watchdog.AlertThreshold == 0 {
		c.Watchdog.AlertThreshold = DefaultAlertThreshold
	}
	if c.Watchdog.GCSchedule == "" {
		c.Watchdog.GCSchedule = "@daily"
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = DefaultGatewayTimeout
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Alerts.Env == "" {
		c.Alerts.Env = "production"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Watchdog.MaxFailures < 0 {
		return fmt.Errorf("watchdog.max_failures must not be negative")
	}
	if c.Watchdog.AlertThreshold < 0 {
		return fmt.Errorf("watchdog.alert_threshold must not be negative")
	}
	if c.Watchdog.AlertThreshold > c.Watchdog.MaxFailures {
		return fmt.Errorf("watchdog.alert_threshold (%d) must not exceed watchdog.max_failures (%d)",
			c.Watchdog.AlertThreshold, c.Watchdog.MaxFailures)
	}

	if c.Alerts.Matrix.Enabled {
		if c.Alerts.Matrix.Homeserver == "" || c.Alerts.Matrix.UserID == "" || c.Alerts.Matrix.RoomID == "" {
			return fmt.Errorf("alerts.matrix requires homeserver, user_id and room_id when enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	durations := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Watchdog.IntervalRaw, &cfg.Watchdog.Interval, "watchdog.interval"},
		{cfg.Watchdog.ReconnectCooldownRaw, &cfg.Watchdog.ReconnectCooldown, "watchdog.reconnect_cooldown"},
		{cfg.Watchdog.StartQRDelayRaw, &cfg.Watchdog.StartQRDelay, "watchdog.start_qr_delay"},
		{cfg.Gateway.TimeoutRaw, &cfg.Gateway.Timeout, "gateway.timeout"},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}

	return nil
}

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" yaml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server" yaml:"server"`
	Storage     StorageConfig   `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig   `toml:"logging" yaml:"logging"`
	Auth        AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit   RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Scheduler   SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket" yaml:"websocket"`
}

type ServerConfig struct {
	Port           int      `toml:"port" yaml:"port"`
	Host           string   `toml:"host" yaml:"host"`
	ReadTimeout    string   `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   string   `toml:"write_timeout" yaml:"write_timeout"`
	IdleTimeout    string   `toml:"idle_timeout" yaml:"idle_timeout"`
	AllowedOrigins []string `toml:"allowed_origins" yaml:"allowed_origins"` // CORS origins, "*" allows any
}

type StorageConfig struct {
	Type     string         `toml:"type" yaml:"type"` // "badger" (default) or "postgres"
	Badger   BadgerConfig   `toml:"badger" yaml:"badger"`
	Postgres PostgresConfig `toml:"postgres" yaml:"postgres"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path"`                         // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// PostgresConfig represents PostgreSQL-specific configuration
type PostgresConfig struct {
	DSN      string `toml:"dsn" yaml:"dsn"`
	MaxConns int32  `toml:"max_conns" yaml:"max_conns"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // default "15:04:05"
	Dir        string   `toml:"dir" yaml:"dir"`                 // log directory when "file" output is enabled
}

// AuthConfig describes the external OAuth2/OIDC identity provider.
type AuthConfig struct {
	Issuer            string   `toml:"issuer" yaml:"issuer"`
	JWKSURL           string   `toml:"jwks_url" yaml:"jwks_url"`
	ClientID          string   `toml:"client_id" yaml:"client_id"`
	ClientSecret      string   `toml:"client_secret" yaml:"client_secret"`
	AuthURL           string   `toml:"auth_url" yaml:"auth_url"`
	TokenURL          string   `toml:"token_url" yaml:"token_url"`
	UserInfoURL       string   `toml:"userinfo_url" yaml:"userinfo_url"`
	RevokeURL         string   `toml:"revoke_url" yaml:"revoke_url"`
	RedirectURI       string   `toml:"redirect_uri" yaml:"redirect_uri"`
	Scopes            []string `toml:"scopes" yaml:"scopes"`
	AllowedAlgorithms []string `toml:"allowed_algorithms" yaml:"allowed_algorithms"`
	RequestTimeout    string   `toml:"request_timeout" yaml:"request_timeout"`
}

type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" yaml:"burst"`
}

type SchedulerConfig struct {
	Enabled            bool   `toml:"enabled" yaml:"enabled"`
	OverdueSchedule    string `toml:"overdue_schedule" yaml:"overdue_schedule"`         // cron, 5 fields
	TokenPurgeSchedule string `toml:"token_purge_schedule" yaml:"token_purge_schedule"` // cron, 5 fields
}

// WebSocketConfig contains configuration for the task event stream
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events" yaml:"allowed_events"`
	WriteTimeout  string   `toml:"write_timeout" yaml:"write_timeout"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8000,
			Host:           "localhost",
			ReadTimeout:    "15s",
			WriteTimeout:   "15s",
			IdleTimeout:    "60s",
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Type: "badger",
			Badger: BadgerConfig{
				Path: "./data",
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
			Dir:        "./logs",
		},
		Auth: AuthConfig{
			Scopes:            []string{"openid", "email", "profile"},
			AllowedAlgorithms: []string{"RS256"},
			RequestTimeout:    "10s",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			OverdueSchedule:    "*/5 * * * *",
			TokenPurgeSchedule: "0 * * * *",
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			WriteTimeout:  "10s",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, config)
		default:
			err = toml.Unmarshal(data, config)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)
	config.Logging.Level = NormalizeLogLevel(config.Logging.Level)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TASKER_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("TASKER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TASKER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if origins := os.Getenv("TASKER_SERVER_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	// Storage configuration
	if storageType := os.Getenv("TASKER_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("TASKER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dsn := os.Getenv("TASKER_POSTGRES_DSN"); dsn != "" {
		config.Storage.Postgres.DSN = dsn
	}

	// Logging configuration
	if level := os.Getenv("TASKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TASKER_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Auth configuration
	authVars := map[string]*string{
		"TASKER_AUTH_ISSUER":        &config.Auth.Issuer,
		"TASKER_AUTH_JWKS_URL":      &config.Auth.JWKSURL,
		"TASKER_AUTH_CLIENT_ID":     &config.Auth.ClientID,
		"TASKER_AUTH_CLIENT_SECRET": &config.Auth.ClientSecret,
		"TASKER_AUTH_AUTH_URL":      &config.Auth.AuthURL,
		"TASKER_AUTH_TOKEN_URL":     &config.Auth.TokenURL,
		"TASKER_AUTH_USERINFO_URL":  &config.Auth.UserInfoURL,
		"TASKER_AUTH_REVOKE_URL":    &config.Auth.RevokeURL,
	}
	for name, target := range authVars {
		if value := os.Getenv(name); value != "" {
			*target = value
		}
	}

	// REDIRECT_URI is the legacy variable name, TASKER_AUTH_REDIRECT_URI wins when both are set
	if redirect := os.Getenv("REDIRECT_URI"); redirect != "" {
		config.Auth.RedirectURI = redirect
	}
	if redirect := os.Getenv("TASKER_AUTH_REDIRECT_URI"); redirect != "" {
		config.Auth.RedirectURI = redirect
	}

	// Rate limit configuration
	if enabled := os.Getenv("TASKER_RATE_LIMIT_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.RateLimit.Enabled = e
		}
	}

	// Scheduler configuration
	if enabled := os.Getenv("TASKER_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration for values the application cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "", "badger":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage type 'postgres' requires storage.postgres.dsn")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'postgres')", c.Storage.Type)
	}

	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.OverdueSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.overdue_schedule: %w", err)
		}
		if err := ValidateSchedule(c.Scheduler.TokenPurgeSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.token_purge_schedule: %w", err)
		}
	}

	return nil
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Address returns the host:port the HTTP server binds to
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/byanjiong/mailmerge/internal/email"
)

// Config holds all configuration for the application
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	History  HistoryConfig  `mapstructure:"history"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives a JSON copy of every log line
	File string `mapstructure:"file"`
}

// GmailConfig holds Gmail API credentials. Exactly one of the three modes is
// used, checked in this order: service account, refresh token, token file.
type GmailConfig struct {
	// CredentialsFile is the OAuth client secrets file (installed app)
	CredentialsFile string `mapstructure:"credentials_file"`
	// TokenFile persists the user token obtained by `mailmerge auth`
	TokenFile string `mapstructure:"token_file"`
	// ServiceAccountJSON is service account credentials with domain-wide delegation
	ServiceAccountJSON string `mapstructure:"service_account_json"`
	// ClientID for refresh-token auth
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for refresh-token auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for refresh-token auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// From returns the From header value, or "" to let Gmail fill it in.
func (c GmailConfig) From() string {
	if c.SenderAddress == "" {
		return ""
	}
	if c.SenderName == "" {
		return c.SenderAddress
	}
	return fmt.Sprintf("%s <%s>", c.SenderName, c.SenderAddress)
}

// DispatchConfig holds the per-run sending policy
type DispatchConfig struct {
	DailyLimit     int           `mapstructure:"daily_limit"`
	SendInterval   time.Duration `mapstructure:"send_interval"`
	SkipSent       bool          `mapstructure:"skip_sent"`
	DefaultSubject string        `mapstructure:"default_subject"`
	DefaultBody    string        `mapstructure:"default_body"`
}

// TrackingConfig holds open-tracking configuration
type TrackingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	// Marker is the substring that identifies an existing tracker in a body;
	// defaults to BaseURL
	Marker string `mapstructure:"marker"`
}

// HistoryConfig selects the send history backend
type HistoryConfig struct {
	// Backend is "file", "postgres" or "redis"
	Backend string `mapstructure:"backend"`
	// File is the history log path for the file backend
	File string `mapstructure:"file"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
	// MigrationsPath is the golang-migrate source directory
	MigrationsPath string `mapstructure:"migrations_path"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the PostgreSQL connection URL
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScheduleConfig holds the default cron spec for periodic campaigns
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Load reads configuration from file, .env and environment variables
func Load() (*Config, error) {
	// A missing .env is fine; a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.mailmerge")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MAILMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.History.Backend {
	case "file", "postgres", "redis":
	default:
		return fmt.Errorf("invalid history backend %q: want file, postgres or redis", c.History.Backend)
	}
	if c.Dispatch.DailyLimit < 0 {
		return fmt.Errorf("invalid daily limit %d", c.Dispatch.DailyLimit)
	}
	if c.Dispatch.SendInterval < 0 {
		return fmt.Errorf("invalid send interval %s", c.Dispatch.SendInterval)
	}
	if c.Tracking.Enabled && c.Tracking.BaseURL == "" {
		return errors.New("tracking is enabled but tracking.base_url is empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "log/process.log")

	// Gmail defaults
	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("gmail.service_account_json", "")
	v.SetDefault("gmail.client_id", "")
	v.SetDefault("gmail.client_secret", "")
	v.SetDefault("gmail.refresh_token", "")
	v.SetDefault("gmail.sender_address", "")
	v.SetDefault("gmail.sender_name", "")

	// Dispatch defaults
	v.SetDefault("dispatch.daily_limit", 450)
	v.SetDefault("dispatch.send_interval", "1500ms")
	v.SetDefault("dispatch.skip_sent", true)
	v.SetDefault("dispatch.default_subject", email.DefaultSubject)
	v.SetDefault("dispatch.default_body", email.DefaultBodyHTML)

	// Tracking defaults
	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.base_url", "https://your-domain.com/tracker/tracker.php")
	v.SetDefault("tracking.marker", "")

	// History defaults
	v.SetDefault("history.backend", "file")
	v.SetDefault("history.file", "sent_history.log")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mailmerge")
	v.SetDefault("database.user", "mailmerge")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.migrations_path", "migrations")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "mailmerge:")

	// Schedule defaults
	v.SetDefault("schedule.cron", "")
}

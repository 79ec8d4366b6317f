package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transport modes for receiving chat updates.
const (
	TelegramModePolling = "polling"
	TelegramModeWebhook = "webhook"
)

// Store drivers.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	// Token is the Bot API token. Falls back to the keyring when empty.
	Token string `mapstructure:"token" yaml:"token"`

	// Mode selects long polling or webhook delivery.
	Mode string `mapstructure:"mode" yaml:"mode" validate:"oneof=polling webhook"`

	// PollTimeoutSec is the long-poll timeout passed to getUpdates.
	PollTimeoutSec int `mapstructure:"poll_timeout_sec" yaml:"poll_timeout_sec" validate:"min=1"`

	// WebhookSecret is compared against the secret token header in webhook mode.
	WebhookSecret string `mapstructure:"webhook_secret" yaml:"webhook_secret"`
}

// NLUConfig holds the Dialogflow agent settings.
type NLUConfig struct {
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
	LanguageCode    string `mapstructure:"language_code" yaml:"language_code" validate:"required"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url" validate:"required"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"min=1"`
}

// StoreConfig selects the repository backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
}

// SessionConfig selects where conversation sessions are kept.
type SessionConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend" validate:"oneof=memory redis"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	TTLHours int    `mapstructure:"ttl_hours" yaml:"ttl_hours" validate:"min=1"`
}

// SweepConfig controls the notification sweep.
type SweepConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec" validate:"min=1"`
}

// ServerConfig holds the HTTP listener used for health checks and webhooks.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds logging and error reporting settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	BotName  string         `mapstructure:"bot_name" yaml:"bot_name" validate:"required"`
	Timezone string         `mapstructure:"timezone" yaml:"timezone" validate:"required"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	NLU      NLUConfig      `mapstructure:"nlu" yaml:"nlu"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Sweep    SweepConfig    `mapstructure:"sweep" yaml:"sweep"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// Location resolves the configured timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SessionTTL returns the session lifetime.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// SweepInterval returns the notification sweep period.
func (c *AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/dojobot/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "dojobot", "config.yaml")
}

// DefaultDataPath returns the default SQLite database location.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "dojobot.db")
	}
	return filepath.Join(home, ".local", "share", "dojobot", "dojobot.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot_name", "Dojo Bot")
	v.SetDefault("timezone", "Australia/Sydney")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.mode", TelegramModePolling)
	v.SetDefault("telegram.poll_timeout_sec", 30)
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("nlu.project_id", "")
	v.SetDefault("nlu.language_code", "en")
	v.SetDefault("nlu.credentials_file", "keyfile.json")
	v.SetDefault("nlu.base_url", "https://dialogflow.googleapis.com")
	v.SetDefault("nlu.timeout_sec", 15)
	v.SetDefault("store.driver", StoreDriverSQLite)
	v.SetDefault("store.dsn", DefaultDataPath())
	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.ttl_hours", 12)
	v.SetDefault("sweep.interval_sec", 10)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.sentry_dsn", "")
	v.SetDefault("log.environment", "development")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values from a .env file and DOJOBOT_* environment variables override the
// file. A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DOJOBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.Session.Backend == SessionBackendRedis && cfg.Session.RedisURL == "" {
		return nil, fmt.Errorf("invalid config %s: session.redis_url is required for the redis backend", path)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. Secrets are not written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	telegram := cfg.Telegram
	telegram.Token = ""

	v.Set("bot_name", cfg.BotName)
	v.Set("timezone", cfg.Timezone)
	v.Set("telegram", telegram)
	v.Set("nlu", cfg.NLU)
	v.Set("store", cfg.Store)
	v.Set("session", cfg.Session)
	v.Set("sweep", cfg.Sweep)
	v.Set("server", cfg.Server)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

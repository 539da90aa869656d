// Package config loads runtime settings from the environment, an optional
// .env file and an optional taskflow.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/taskflow-dev/taskflow/internal/types"
)

type Config struct {
	Port           string        `mapstructure:"port"`
	DatabaseDriver string        `mapstructure:"database_driver"`
	DatabaseURL    string        `mapstructure:"database_url"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	CookieDomain   string        `mapstructure:"cookie_domain"`
	AllowedOrigins string        `mapstructure:"allowed_origins"`
	ClientURL      string        `mapstructure:"client_url"`

	RedisURL        string `mapstructure:"redis_url"`
	KafkaBrokers    string `mapstructure:"kafka_brokers"`
	KafkaAuditTopic string `mapstructure:"kafka_audit_topic"`

	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	ReminderWindow   time.Duration `mapstructure:"reminder_window"`

	AlertWebhookURL  string `mapstructure:"alert_webhook_url"`
	AlertWebhookKind string `mapstructure:"alert_webhook_kind"`

	LogLevel string `mapstructure:"log_level"`
	GinMode  string `mapstructure:"gin_mode"`
}

var defaults = map[string]any{
	"port":               "5000",
	"database_driver":    "postgres",
	"database_url":       "",
	"jwt_secret":         "",
	"jwt_ttl":            "24h",
	"cookie_domain":      "",
	"allowed_origins":    "",
	"client_url":         "",
	"redis_url":          "",
	"kafka_brokers":      "",
	"kafka_audit_topic":  "taskflow.audit",
	"reminder_interval":  "5m",
	"reminder_window":    "24h",
	"alert_webhook_url":  "",
	"alert_webhook_kind": "slack",
	"log_level":          "info",
	"gin_mode":           "release",
}

// Load reads configuration. configFile may be empty, in which case
// ./taskflow.yaml is used when present.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("taskflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	switch c.AlertWebhookKind {
	case "slack", "discord":
	default:
		return fmt.Errorf("ALERT_WEBHOOK_KIND must be slack or discord, got %q", c.AlertWebhookKind)
	}
	return nil
}

func (c *Config) Origins() []string {
	return types.AllowedOrigins(c.ClientURL, c.AllowedOrigins)
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetupLogger installs a JSON slog handler on stderr as the default logger.
func (c *Config) SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

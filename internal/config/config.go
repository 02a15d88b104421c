package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. STUDIO_SERVER_ADMIN_KEY.
const EnvPrefix = "STUDIO_"

type Config struct {
	Server struct {
		Address             string  `yaml:"address"               env:"ADDRESS"`
		AdminKey            string  `yaml:"admin_key"             env:"ADMIN_KEY"`
		ReadTimeoutSeconds  int     `yaml:"read_timeout_seconds"  env:"READ_TIMEOUT_SECONDS"`
		WriteTimeoutSeconds int     `yaml:"write_timeout_seconds" env:"WRITE_TIMEOUT_SECONDS"`
		RateLimitPerSecond  float64 `yaml:"rate_limit_per_second" env:"RATE_LIMIT_PER_SECOND"`
		RateLimitBurst      int     `yaml:"rate_limit_burst"      env:"RATE_LIMIT_BURST"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Database struct {
		Path string `yaml:"path" env:"PATH"`
	} `yaml:"database" envPrefix:"DATABASE_"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"        env:"ENABLED"`
		IntervalHours int    `yaml:"interval_hours" env:"INTERVAL_HOURS"`
		Path          string `yaml:"path"           env:"PATH"`
		RetentionDays int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	} `yaml:"backup" envPrefix:"BACKUP_"`

	Redis struct {
		Address  string `yaml:"address"  env:"ADDRESS"`
		Password string `yaml:"password" env:"PASSWORD"`
		DB       int    `yaml:"db"       env:"DB"`
	} `yaml:"redis" envPrefix:"REDIS_"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled" env:"PROMETHEUS_ENABLED"`
		PrometheusPort    int  `yaml:"prometheus_port"    env:"PROMETHEUS_PORT"`
	} `yaml:"monitoring" envPrefix:"MONITORING_"`

	Logging struct {
		Level  string `yaml:"level"  env:"LEVEL"`
		Pretty bool   `yaml:"pretty" env:"PRETTY"`
	} `yaml:"logging" envPrefix:"LOG_"`

	Email struct {
		Enabled  bool   `yaml:"enabled"  env:"ENABLED"`
		Host     string `yaml:"host"     env:"HOST"`
		Port     int    `yaml:"port"     env:"PORT"`
		Username string `yaml:"username" env:"USERNAME"`
		Password string `yaml:"password" env:"PASSWORD"`
		From     string `yaml:"from"     env:"FROM"`
		SSL      bool   `yaml:"ssl"      env:"SSL"`
	} `yaml:"email" envPrefix:"EMAIL_"`

	Telegram struct {
		Enabled     bool   `yaml:"enabled"       env:"ENABLED"`
		BotToken    string `yaml:"bot_token"     env:"BOT_TOKEN"`
		AdminChatID int64  `yaml:"admin_chat_id" env:"ADMIN_CHAT_ID"`
	} `yaml:"telegram" envPrefix:"TELEGRAM_"`

	Notify struct {
		RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
		Burst         int     `yaml:"burst"           env:"BURST"`
		QueueSize     int     `yaml:"queue_size"      env:"QUEUE_SIZE"`
	} `yaml:"notify" envPrefix:"NOTIFY_"`

	Booking struct {
		MaxAdvanceDays  int `yaml:"max_advance_days"  env:"MAX_ADVANCE_DAYS"`
		DraftTTLMinutes int `yaml:"draft_ttl_minutes" env:"DRAFT_TTL_MINUTES"`
	} `yaml:"booking" envPrefix:"BOOKING_"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"                env:"ENABLED"`
		HoursBefore          int  `yaml:"hours_before"           env:"HOURS_BEFORE"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes" env:"CHECK_INTERVAL_MINUTES"`
	} `yaml:"reminders" envPrefix:"REMINDERS_"`

	Studio struct {
		Path                 string `yaml:"path"                   env:"PATH"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds" env:"WATCH_INTERVAL_SECONDS"`
	} `yaml:"studio" envPrefix:"FILE_"`
}

// Load reads the YAML config at path, then applies STUDIO_* environment
// overrides. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err = env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/studiobook.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Studio.Path == "" {
		c.Studio.Path = "configs/studio.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// BookingMaxAdvanceDays bounds how far ahead a date may be booked.
func (c *Config) BookingMaxAdvanceDays() int {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 90
	}
	return c.Booking.MaxAdvanceDays
}

func (c *Config) DraftTTL() time.Duration {
	if c.Booking.DraftTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.DraftTTLMinutes) * time.Minute
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.CheckIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalMinutes) * time.Minute
}

func (c *Config) StudioWatchInterval() time.Duration {
	if c.Studio.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Studio.WatchIntervalSeconds) * time.Second
}

func (c *Config) NotifyRate() (perSecond float64, burst int) {
	perSecond, burst = c.Notify.RatePerSecond, c.Notify.Burst
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return perSecond, burst
}

func (c *Config) NotifyQueueSize() int {
	if c.Notify.QueueSize <= 0 {
		return 100
	}
	return c.Notify.QueueSize
}

func (c *Config) RateLimit() (perSecond float64, burst int) {
	perSecond, burst = c.Server.RateLimitPerSecond, c.Server.RateLimitBurst
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return perSecond, burst
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// DatabaseConfig describes the ban record store connection.
// Path is only used by the sqlite driver.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Charset      string `mapstructure:"charset"`
	Path         string `mapstructure:"path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`

	// statements slower than this are logged and counted as slow
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// SyncConfig tunes the poll loop.
type SyncConfig struct {
	Strategy     string        `mapstructure:"strategy"`
	Interval     time.Duration `mapstructure:"interval"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	Buffer       int           `mapstructure:"buffer"`
}

type PlatformsConfig struct {
	VK       VKConfig       `mapstructure:"vk"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type VKConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Token      string  `mapstructure:"token"`
	OwnerID    int64   `mapstructure:"owner_id"`
	APIURL     string  `mapstructure:"api_url"`
	APIVersion string  `mapstructure:"api_version"`
	Rate       float64 `mapstructure:"rate"`
}

type TelegramConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Token      string  `mapstructure:"token"`
	ChannelID  int64   `mapstructure:"channel_id"`
	Rate       float64 `mapstructure:"rate"`
	Moderation bool    `mapstructure:"moderation"`
	Moderators []int64 `mapstructure:"moderators"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

var cfg *Config

// Load reads the YAML file at configPath. A .env file next to the process
// is loaded first so secrets can be supplied as BANSYNC_* variables.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BANSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host and dbname are required for driver %q", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for driver sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Sync.Strategy {
	case "predicate", "cursor":
	default:
		return fmt.Errorf("unsupported sync strategy %q", c.Sync.Strategy)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.Sync.Interval)
	}

	if c.Platforms.VK.Enabled && (c.Platforms.VK.Token == "" || c.Platforms.VK.OwnerID == 0) {
		return fmt.Errorf("platforms.vk requires token and owner_id")
	}
	if c.Platforms.Telegram.Enabled && (c.Platforms.Telegram.Token == "" || c.Platforms.Telegram.ChannelID == 0) {
		return fmt.Errorf("platforms.telegram requires token and channel_id")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.path", "")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("sync.strategy", "predicate")
	v.SetDefault("sync.interval", 5*time.Second)
	v.SetDefault("sync.query_timeout", 10*time.Second)
	v.SetDefault("sync.buffer", 16)

	v.SetDefault("platforms.vk.enabled", false)
	v.SetDefault("platforms.vk.token", "")
	v.SetDefault("platforms.vk.owner_id", 0)
	v.SetDefault("platforms.vk.api_url", "https://api.vk.com/method")
	v.SetDefault("platforms.vk.api_version", "5.199")
	v.SetDefault("platforms.vk.rate", 1.0)

	v.SetDefault("platforms.telegram.enabled", false)
	v.SetDefault("platforms.telegram.token", "")
	v.SetDefault("platforms.telegram.channel_id", 0)
	v.SetDefault("platforms.telegram.rate", 1.0)
	v.SetDefault("platforms.telegram.moderation", true)
	v.SetDefault("platforms.telegram.moderators", []int64{})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", ":9090")
}

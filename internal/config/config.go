// Package config handles loading, validation, and access to application
// configuration from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable prefix. GIGHARVEST_LOGGER_LEVEL overrides
// logger.level, and so on.
const envPrefix = "GIGHARVEST"

// Defaults.
const (
	defaultAPIAddress      = ":8080"
	defaultAPIReadTimeout  = 15 * time.Second
	defaultAPIWriteTimeout = 15 * time.Second
	defaultAPIIdleTimeout  = 60 * time.Second
	defaultGigIndex        = "gigs"
	defaultSourcesDir      = "sources"
	defaultStaggerMinutes  = 2
	defaultHistoryLimit    = 50
	defaultRedisAddress    = "127.0.0.1:6379"
	defaultElasticAddress  = "http://127.0.0.1:9200"
	defaultShutdownTimeout = 30 * time.Second
	defaultRateBaseDelay   = time.Second
	defaultRateMaxDelay    = 5 * time.Minute
)

// Config validation errors.
var (
	ErrNoSourcesDir    = errors.New("sources directory is required")
	ErrNoElasticsearch = errors.New("at least one elasticsearch address is required")
)

// Config is the application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Sources       SourcesConfig       `mapstructure:"sources"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Database      DatabaseConfig      `mapstructure:"database"`
	API           APIConfig           `mapstructure:"api"`
	Trust         TrustConfig         `mapstructure:"trust"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"`
	Caller      bool   `mapstructure:"caller"`
}

// SourcesConfig holds source definition settings.
type SourcesConfig struct {
	// Dir is the directory holding per-source YAML definitions
	Dir string `mapstructure:"dir"`
	// Watch reloads source definitions on file changes
	Watch bool `mapstructure:"watch"`
}

// SchedulerConfig holds supervisor settings.
type SchedulerConfig struct {
	StaggerMinutes  int            `mapstructure:"stagger_minutes"`
	Overrides       map[string]int `mapstructure:"overrides"`
	SweepInterval   time.Duration  `mapstructure:"sweep_interval"`
	StuckThreshold  time.Duration  `mapstructure:"stuck_threshold"`
	StaleThreshold  time.Duration  `mapstructure:"stale_threshold"`
	ErrorCooldown   time.Duration  `mapstructure:"error_cooldown"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
}

// RateLimitConfig holds request pacing settings shared by every source.
type RateLimitConfig struct {
	// BaseDelay seeds the failure backoff
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// MaxDelay caps the failure backoff
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// ElasticsearchConfig holds Elasticsearch connection settings.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	GigIndex  string   `mapstructure:"gig_index"`
}

// RedisConfig holds Redis connection settings for snapshot storage.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig holds PostgreSQL settings for run history. Optional;
// an empty DSN disables history persistence.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// TrustConfig holds trust scores used by the merge step.
type TrustConfig struct {
	Default int `mapstructure:"default"`
	// Scores maps a source name to an explicit trust score
	Scores map[string]int `mapstructure:"scores"`
	// Patterns maps a glob over source names to a trust score,
	// consulted when no explicit score matches
	Patterns map[string]int `mapstructure:"patterns"`
}

// Load reads configuration from the given file path (or the default
// search path when empty) and the environment.
func Load(path string) (*Config, error) {
	// Environment variables from .env are optional.
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// The file is optional unless one was named explicitly.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Sources.Dir == "" {
		return ErrNoSourcesDir
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return ErrNoElasticsearch
	}
	return nil
}

// setDefaults applies production-safe defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "gigharvest",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
		"caller":      false,
	})

	v.SetDefault("sources", map[string]any{
		"dir":   defaultSourcesDir,
		"watch": false,
	})

	v.SetDefault("scheduler", map[string]any{
		"stagger_minutes":  defaultStaggerMinutes,
		"sweep_interval":   "1m",
		"stuck_threshold":  "30m",
		"stale_threshold":  "24h",
		"error_cooldown":   "15m",
		"shutdown_timeout": defaultShutdownTimeout.String(),
	})

	v.SetDefault("rate_limit", map[string]any{
		"base_delay": defaultRateBaseDelay.String(),
		"max_delay":  defaultRateMaxDelay.String(),
	})

	v.SetDefault("elasticsearch", map[string]any{
		"addresses": []string{defaultElasticAddress},
		"gig_index": defaultGigIndex,
	})

	v.SetDefault("redis", map[string]any{
		"address": defaultRedisAddress,
		"db":      0,
	})

	v.SetDefault("database", map[string]any{
		"max_open_conns": 10,
		"max_idle_conns": 5,
		"history_limit":  defaultHistoryLimit,
	})

	v.SetDefault("api", map[string]any{
		"address":       defaultAPIAddress,
		"read_timeout":  defaultAPIReadTimeout.String(),
		"write_timeout": defaultAPIWriteTimeout.String(),
		"idle_timeout":  defaultAPIIdleTimeout.String(),
	})

	v.SetDefault("trust", map[string]any{
		"default": 50,
	})
}

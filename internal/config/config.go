// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs orchestration and dispatch behavior.
type CrawlerConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	Workers      int    `mapstructure:"workers"`
	QueueDepth   int    `mapstructure:"queue_depth"`
	UserAgent    string `mapstructure:"user_agent"`
	PerDomainRPS int    `mapstructure:"per_domain_rps"`
	MaxItems     int    `mapstructure:"max_items"`
}

// FetchConfig configures HTTP fetch and retry behavior.
type FetchConfig struct {
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	MaxRetries        int `mapstructure:"max_retries"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

// SchedulerConfig governs the periodic crawl scheduler.
type SchedulerConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	TickSeconds             int  `mapstructure:"tick_seconds"`
	DefaultIntervalMinutes  int  `mapstructure:"default_interval_minutes"`
	StaleRunGraceMinutes    int  `mapstructure:"stale_run_grace_minutes"`
	StaleSweepPeriodMinutes int  `mapstructure:"stale_sweep_period_minutes"`
}

// StorageConfig sets paths and content types for raw payload archival.
type StorageConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for saved-article notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.concurrency", 10)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", "newscrawler-bot/0.1")
	v.SetDefault("crawler.per_domain_rps", 2)
	v.SetDefault("crawler.max_items", 50)
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.retry_delay_seconds", 5)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_seconds", 60)
	v.SetDefault("scheduler.default_interval_minutes", 15)
	v.SetDefault("scheduler.stale_run_grace_minutes", 30)
	v.SetDefault("scheduler.stale_sweep_period_minutes", 5)
	v.SetDefault("storage.prefix", "articles")
	v.SetDefault("storage.content_type", "application/json; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Scheduler.TickSeconds <= 0 {
		return fmt.Errorf("scheduler.tick_seconds must be > 0")
	}
	if c.Scheduler.DefaultIntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.default_interval_minutes must be > 0")
	}
	return nil
}

// FetchTimeout returns the per-attempt HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed pause between fetch attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Fetch.RetryDelaySeconds) * time.Second
}

// TickInterval returns the scheduler polling period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// StaleRunGrace returns how long a run may stay running before the sweeper
// marks it failed.
func (c Config) StaleRunGrace() time.Duration {
	return time.Duration(c.Scheduler.StaleRunGraceMinutes) * time.Minute
}

// DefaultInterval returns the crawl interval for sources without one.
func (c Config) DefaultInterval() time.Duration {
	return time.Duration(c.Scheduler.DefaultIntervalMinutes) * time.Minute
}

// StaleSweepPeriod returns how often the stale run sweeper fires.
func (c Config) StaleSweepPeriod() time.Duration {
	return time.Duration(c.Scheduler.StaleSweepPeriodMinutes) * time.Minute
}

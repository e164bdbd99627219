package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DATABASE"`
	Venue      VenueConfig      `yaml:"venue" envconfig:"VENUE"`
	Schedule   ScheduleConfig   `yaml:"schedule" envconfig:"SCHEDULE"`
	Push       PushConfig       `yaml:"push" envconfig:"PUSH"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool" envconfig:"WORKER_POOL"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" envconfig:"SIZE"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" envconfig:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" envconfig:"SUBJECT"`
	TTL        int    `yaml:"ttl" envconfig:"TTL"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" envconfig:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" envconfig:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"CONN_MAX_LIFETIME_MINUTES"`
}

// VenueConfig describes where the restaurant is. All "today" comparisons
// happen in the venue's fixed offset, never the server locale.
type VenueConfig struct {
	UTCOffsetHours *int           `yaml:"utc_offset_hours" envconfig:"UTC_OFFSET_HOURS"`
	Location       *time.Location `yaml:"-" ignored:"true"`
}

// ScheduleConfig holds the slot-availability policy.
type ScheduleConfig struct {
	SlotIntervalMinutes     int  `yaml:"slot_interval_minutes" envconfig:"SLOT_INTERVAL_MINUTES"`
	HoldDurationSeconds     int  `yaml:"hold_duration_seconds" envconfig:"HOLD_DURATION_SECONDS"`
	DefaultTables           int  `yaml:"default_tables" envconfig:"DEFAULT_TABLES"`
	DefaultDiningMinutes    int  `yaml:"default_dining_minutes" envconfig:"DEFAULT_DINING_MINUTES"`
	DefaultBufferMinutes    *int `yaml:"default_buffer_minutes" envconfig:"DEFAULT_BUFFER_MINUTES"`
	SettingsCacheTTLSeconds int  `yaml:"settings_cache_ttl_seconds" envconfig:"SETTINGS_CACHE_TTL_SECONDS"`
	ReadRetries             int  `yaml:"read_retries" envconfig:"READ_RETRIES"`
	ReadRetryBaseDelayMS    int  `yaml:"read_retry_base_delay_ms" envconfig:"READ_RETRY_BASE_DELAY_MS"`

	SlotInterval       time.Duration `yaml:"-" ignored:"true"`
	HoldDuration       time.Duration `yaml:"-" ignored:"true"`
	SettingsCacheTTL   time.Duration `yaml:"-" ignored:"true"`
	ReadRetryBaseDelay time.Duration `yaml:"-" ignored:"true"`
}

// BufferMinutes returns the default buffer between seatings. Zero is a
// valid buffer; only an unset value falls back to 15.
func (s ScheduleConfig) BufferMinutes() int {
	if s.DefaultBufferMinutes == nil {
		return 15
	}
	return *s.DefaultBufferMinutes
}

// Load reads the configuration from the given path, then overlays any
// environment variables (e.g. DATABASE_DSN, SERVER_PORT). A missing file is
// not an error; the environment and defaults are used instead.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Printf("config file %s not found; using environment and defaults", path)
	default:
		return nil, err
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("environment overlay: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	offset := 7
	if cfg.Venue.UTCOffsetHours != nil {
		offset = *cfg.Venue.UTCOffsetHours
	}
	cfg.Venue.UTCOffsetHours = &offset
	cfg.Venue.Location = time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)

	s := &cfg.Schedule
	if s.SlotIntervalMinutes <= 0 {
		s.SlotIntervalMinutes = 30
	}
	if s.HoldDurationSeconds <= 0 {
		s.HoldDurationSeconds = 30
	}
	if s.DefaultTables <= 0 {
		s.DefaultTables = 10
	}
	if s.DefaultDiningMinutes <= 0 {
		s.DefaultDiningMinutes = 90
	}
	buffer := 15
	if s.DefaultBufferMinutes != nil {
		if *s.DefaultBufferMinutes < 0 {
			log.Printf("schedule.default_buffer_minutes %d is negative; defaulting to %d", *s.DefaultBufferMinutes, buffer)
		} else {
			buffer = *s.DefaultBufferMinutes
		}
	}
	s.DefaultBufferMinutes = &buffer
	if s.SettingsCacheTTLSeconds <= 0 {
		s.SettingsCacheTTLSeconds = 60
	}
	if s.ReadRetries < 0 {
		s.ReadRetries = 0
	} else if s.ReadRetries == 0 {
		s.ReadRetries = 2
	}
	if s.ReadRetryBaseDelayMS <= 0 {
		s.ReadRetryBaseDelayMS = 500
	}
	s.SlotInterval = time.Duration(s.SlotIntervalMinutes) * time.Minute
	s.HoldDuration = time.Duration(s.HoldDurationSeconds) * time.Second
	s.SettingsCacheTTL = time.Duration(s.SettingsCacheTTLSeconds) * time.Second
	s.ReadRetryBaseDelay = time.Duration(s.ReadRetryBaseDelayMS) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
	Alerting   AlertingConfig   `yaml:"alerting"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Retention  RetentionConfig  `yaml:"retention"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	APIVersion      string   `yaml:"api_version"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	// IngestAPIKeys gate the data-push endpoints. Empty means open.
	IngestAPIKeys []string `yaml:"ingest_api_keys"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string        `yaml:"driver"` // postgres or sqlite
	DSN                    string        `yaml:"dsn"`
	MaxOpenConns           int           `yaml:"max_open_conns"`
	MaxIdleConns           int           `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int           `yaml:"conn_max_lifetime_minutes"`
	QueryTimeoutMs         int           `yaml:"query_timeout_ms"`
	QueryTimeout           time.Duration `yaml:"-"`
	EnableTimescale        bool          `yaml:"enable_timescale"`
	LogLevel               string        `yaml:"log_level"` // silent, error, warn, info
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	Issuer            string `yaml:"issuer"`
	ExpirationMinutes int    `yaml:"expiration_minutes"`
}

// RealtimeConfig tunes the websocket push channel.
type RealtimeConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`
	WriteWaitSecs   int           `yaml:"write_wait_seconds"`
	PongWaitSecs    int           `yaml:"pong_wait_seconds"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	WriteWait       time.Duration `yaml:"-"`
	PongWait        time.Duration `yaml:"-"`
}

// AlertingConfig holds alert defaults.
type AlertingConfig struct {
	DefaultSeverity string `yaml:"default_severity"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// RetentionConfig controls the periodic purge of old sensor data.
type RetentionConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalMinutes int           `yaml:"interval_minutes"`
	Interval        time.Duration `yaml:"-"`
	MaxAgeDays      int           `yaml:"max_age_days"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset values and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.APIVersion == "" {
		cfg.Server.APIVersion = "v1"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 20
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 40
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.QueryTimeoutMs <= 0 {
		cfg.Database.QueryTimeoutMs = 5000
	}
	cfg.Database.QueryTimeout = time.Duration(cfg.Database.QueryTimeoutMs) * time.Millisecond
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "bio-monitor"
	}
	if cfg.Auth.ExpirationMinutes <= 0 {
		cfg.Auth.ExpirationMinutes = 24 * 60
	}

	if cfg.Realtime.SendBuffer <= 0 {
		cfg.Realtime.SendBuffer = 256
	}
	if cfg.Realtime.WriteWaitSecs <= 0 {
		cfg.Realtime.WriteWaitSecs = 10
	}
	if cfg.Realtime.PongWaitSecs <= 0 {
		cfg.Realtime.PongWaitSecs = 60
	}
	if cfg.Realtime.MaxMessageBytes <= 0 {
		cfg.Realtime.MaxMessageBytes = 4096
	}
	cfg.Realtime.WriteWait = time.Duration(cfg.Realtime.WriteWaitSecs) * time.Second
	cfg.Realtime.PongWait = time.Duration(cfg.Realtime.PongWaitSecs) * time.Second

	if cfg.Alerting.DefaultSeverity == "" {
		cfg.Alerting.DefaultSeverity = "warning"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}

	if cfg.Retention.IntervalMinutes <= 0 {
		cfg.Retention.IntervalMinutes = 60
	}
	cfg.Retention.Interval = time.Duration(cfg.Retention.IntervalMinutes) * time.Minute
	if cfg.Retention.MaxAgeDays <= 0 {
		cfg.Retention.MaxAgeDays = 90
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

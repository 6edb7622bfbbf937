// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	StaticDir         string        `mapstructure:"static_dir"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig gates the UI and API behind a single shared password.
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Password string `mapstructure:"password"`
	// PasswordHash is a bcrypt hash and takes precedence over Password.
	PasswordHash       string        `mapstructure:"password_hash"`
	SessionSecret      string        `mapstructure:"session_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	CookieName         string        `mapstructure:"cookie_name"`
	CookieSecure       bool          `mapstructure:"cookie_secure"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
	LoginBurst         int           `mapstructure:"login_burst"`
}

// CaptureConfig tunes the metadata pipeline.
type CaptureConfig struct {
	UserAgent       string         `mapstructure:"user_agent"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	MaxBodyBytes    int            `mapstructure:"max_body_bytes"`
	RespectRobots   bool           `mapstructure:"respect_robots"`
	FaviconCacheTTL time.Duration  `mapstructure:"favicon_cache_ttl"`
	Headless        HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig switches snapshots to a rendered DOM.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
}

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageS3     = "s3"
)

// StorageConfig selects where snapshots and favicons live.
type StorageConfig struct {
	Backend string     `mapstructure:"backend"`
	Local   LocalBlobs `mapstructure:"local"`
	GCS     GCSBlobs   `mapstructure:"gcs"`
	S3      S3Blobs    `mapstructure:"s3"`
}

// LocalBlobs stores objects on disk.
type LocalBlobs struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSBlobs stores objects in a Cloud Storage bucket.
type GCSBlobs struct {
	Bucket string `mapstructure:"bucket"`
}

// S3Blobs stores objects in S3 or an S3-compatible service.
type S3Blobs struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// DatabaseConfig controls the Postgres repository. An empty DSN selects the
// in-memory repository.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// CacheConfig configures optional caches.
type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig enables the favicon host cache when Addr is set.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// Event backends.
const (
	EventsNone   = "none"
	EventsMemory = "memory"
	EventsPubSub = "pubsub"
)

// EventsConfig selects where lifecycle events go.
type EventsConfig struct {
	Backend string       `mapstructure:"backend"`
	PubSub  PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds the Pub/Sub project and topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from an optional YAML file and LINKVAULT_* env vars.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKVAULT")
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

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 30*24*time.Hour)
	v.SetDefault("auth.cookie_name", "linkvault_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)

	v.SetDefault("capture.user_agent", "Mozilla/5.0 (compatible; BookmarkBot/1.0)")
	v.SetDefault("capture.timeout", 15*time.Second)
	v.SetDefault("capture.max_body_bytes", 10<<20)
	v.SetDefault("capture.respect_robots", false)
	v.SetDefault("capture.favicon_cache_ttl", 24*time.Hour)
	v.SetDefault("capture.headless.enabled", false)
	v.SetDefault("capture.headless.max_parallel", 2)
	v.SetDefault("capture.headless.navigation_timeout", 30*time.Second)
	v.SetDefault("capture.headless.settle_delay", 500*time.Millisecond)

	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.local.base_dir", "data/blobs")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.migrate", true)

	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.connect_timeout", 10*time.Second)

	v.SetDefault("events.backend", EventsNone)
	v.SetDefault("events.pubsub.project_id", "")
	v.SetDefault("events.pubsub.topic", "bookmark-events")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout must be > 0")
	}
	if c.Capture.Headless.Enabled && c.Capture.Headless.MaxParallel <= 0 {
		return fmt.Errorf("capture.headless.max_parallel must be > 0 when headless is enabled")
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.Database.DSN != "" && c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be > 0")
	}
	switch c.Events.Backend {
	case EventsNone, EventsMemory:
	case EventsPubSub:
		if c.Events.PubSub.ProjectID == "" || c.Events.PubSub.Topic == "" {
			return fmt.Errorf("events.pubsub.project_id and events.pubsub.topic are required for the pubsub backend")
		}
	default:
		return fmt.Errorf("events.backend %q is not one of none, memory, pubsub", c.Events.Backend)
	}
	return nil
}

func (a AuthConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if a.Password == "" && a.PasswordHash == "" {
		return fmt.Errorf("auth.password or auth.password_hash must be set when auth is enabled")
	}
	if len(a.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 bytes when auth is enabled")
	}
	if a.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be > 0")
	}
	if a.CookieName == "" {
		return fmt.Errorf("auth.cookie_name must be set")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageMemory:
	case StorageLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case StorageGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs backend")
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, local, gcs, s3", s.Backend)
	}
	return nil
}

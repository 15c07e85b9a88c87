package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeoutSeconds is the default read timeout in seconds
	DefaultReadTimeoutSeconds = 10
	// DefaultWriteTimeoutSeconds is the default write timeout in seconds
	DefaultWriteTimeoutSeconds = 30
	// DefaultShutdownTimeoutSeconds is the default shutdown timeout in seconds
	DefaultShutdownTimeoutSeconds = 30
)

type Config struct {
	Debug      bool             `yaml:"debug"` // Application debug mode (controls log level and format)
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Worker     WorkerConfig     `yaml:"worker"`
	Staging    StagingConfig    `yaml:"staging"`
	Instagram  InstagramConfig  `yaml:"instagram"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Compositor CompositorConfig `yaml:"compositor"`
	Blob       BlobConfig       `yaml:"blob"`
	Site       SiteConfig       `yaml:"site"`
	Dedup      DedupConfig      `yaml:"dedup"`
}

type SiteConfig struct {
	URL  string `yaml:"url"`  // Brand link appended to captions
	Name string `yaml:"name"` // Brand name used in descriptions
}

type DedupConfig struct {
	TTL time.Duration `yaml:"ttl"` // Posted-content cache expiry
}

type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8070"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`   // How often the worker wakes to claim a job
	PublishTimeout time.Duration `yaml:"publish_timeout"` // Per-platform budget for the full publish cycle
	PostSpacing    time.Duration `yaml:"post_spacing"`    // Minimum spacing between outbound posts
	StaleAfter     time.Duration `yaml:"stale_after"`     // Age at which a processing job counts as stale
}

type StagingConfig struct {
	ImgbbKey string        `yaml:"imgbb_key"` // Optional: enables the imgbb fallback host
	Timeout  time.Duration `yaml:"timeout"`   // Per-host upload timeout
}

type InstagramConfig struct {
	AccountID   string `yaml:"account_id"`
	AccessToken string `yaml:"access_token"`
	Enabled     bool   `yaml:"enabled"`
}

type YouTubeConfig struct {
	AccessToken string `yaml:"access_token"`
	Enabled     bool   `yaml:"enabled"`
}

type CompositorConfig struct {
	Watermark       string  `yaml:"watermark"`         // Handle drawn in the overlay footer
	MaxOverlayRatio float64 `yaml:"max_overlay_ratio"` // Overlay height cap as a fraction of canvas height
	FontPath        string  `yaml:"font_path"`         // Optional: explicit TTF path; OS probe + bundled fallback otherwise
}

type BlobConfig struct {
	InlineThresholdBytes int           `yaml:"inline_threshold_bytes"` // Assets at or under this size stay in the row
	TTL                  time.Duration `yaml:"ttl"`                    // Redis blob expiry
}

// Validate checks if the server configuration is valid and sets defaults.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		c.Address = ":8070" // Default port
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %v", c.Worker.PollInterval)
	}
	if c.Instagram.Enabled {
		if c.Instagram.AccountID == "" {
			return errors.New("instagram.account_id is required when instagram.enabled is true")
		}
		if c.Instagram.AccessToken == "" {
			return errors.New("instagram.access_token is required when instagram.enabled is true")
		}
	}
	if c.YouTube.Enabled && c.YouTube.AccessToken == "" {
		return errors.New("youtube.access_token is required when youtube.enabled is true")
	}
	if c.Compositor.MaxOverlayRatio <= 0 || c.Compositor.MaxOverlayRatio > 1 {
		return fmt.Errorf("compositor.max_overlay_ratio must be in (0,1], got %v", c.Compositor.MaxOverlayRatio)
	}
	return nil
}

// setDefaults sets default values for configuration fields
func setDefaults(cfg *Config) {
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 15 * time.Minute
	}
	if cfg.Worker.PublishTimeout == 0 {
		cfg.Worker.PublishTimeout = 5 * time.Minute
	}
	if cfg.Worker.PostSpacing == 0 {
		cfg.Worker.PostSpacing = time.Minute
	}
	if cfg.Worker.StaleAfter == 0 {
		cfg.Worker.StaleAfter = time.Hour
	}
	if cfg.Staging.Timeout == 0 {
		cfg.Staging.Timeout = 30 * time.Second
	}
	if cfg.Compositor.MaxOverlayRatio == 0 {
		cfg.Compositor.MaxOverlayRatio = 0.5
	}
	if cfg.Blob.InlineThresholdBytes == 0 {
		cfg.Blob.InlineThresholdBytes = 1 << 20 // 1 MiB
	}
	if cfg.Blob.TTL == 0 {
		cfg.Blob.TTL = 7 * 24 * time.Hour
	}
	if cfg.Dedup.TTL == 0 {
		cfg.Dedup.TTL = 30 * 24 * time.Hour
	}
}

// overrideWithEnvVars overrides configuration with environment variables
func overrideWithEnvVars(cfg *Config) {
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("POSTGRES_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if name := os.Getenv("POSTGRES_DB"); name != "" {
		cfg.Database.Name = name
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if token := os.Getenv("INSTAGRAM_ACCESS_TOKEN"); token != "" {
		cfg.Instagram.AccessToken = token
	}
	if account := os.Getenv("INSTAGRAM_ACCOUNT_ID"); account != "" {
		cfg.Instagram.AccountID = account
	}
	if token := os.Getenv("YOUTUBE_ACCESS_TOKEN"); token != "" {
		cfg.YouTube.AccessToken = token
	}
	if key := os.Getenv("IMGBB_API_KEY"); key != "" {
		cfg.Staging.ImgbbKey = key
	}
	if url := os.Getenv("SITE_URL"); url != "" {
		cfg.Site.URL = url
	}
	if name := os.Getenv("SITE_NAME"); name != "" {
		cfg.Site.Name = name
	}
	// Parse APP_DEBUG environment variable
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Set defaults
	setDefaults(&cfg)

	// Override with environment variables if present
	overrideWithEnvVars(&cfg)

	// Set server defaults
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server config validation: %w", err)
	}

	// Override server config with environment variable if present
	if port := os.Getenv("REELCAST_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Providers ProvidersConfig `yaml:"providers"`
	Limits    LimitsConfig    `yaml:"limits"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
}

type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

type CacheConfig struct {
	Path         string        `yaml:"path"`
	MetadataTTL  time.Duration `yaml:"metadata_ttl"`
	ContentTTL   time.Duration `yaml:"content_ttl"`
	SearchTTL    time.Duration `yaml:"search_ttl"`
	LanguagesTTL time.Duration `yaml:"languages_ttl"`
	MaxCacheSize int64         `yaml:"max_cache_size"` // bytes
}

type ProvidersConfig struct {
	OpenSubtitles OpenSubtitlesConfig `yaml:"opensubtitles"`
	SubDB         SubDBConfig         `yaml:"subdb"`
}

type OpenSubtitlesConfig struct {
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`
}

type SubDBConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

type LimitsConfig struct {
	APICallsPerMinute  int           `yaml:"api_calls_per_minute"`
	ConcurrentRequests int           `yaml:"concurrent_requests"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
	MaxSubtitleSize    int64         `yaml:"max_subtitle_size"` // bytes
}

type SubtitlesConfig struct {
	CacheDuration     time.Duration `yaml:"cache_duration"`
	DefaultFormat     string        `yaml:"default_format"`
	OutputFormats     []string      `yaml:"output_formats"`
	PriorityLanguages []string      `yaml:"priority_languages"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    4444,
			MetricsPort: 9090,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/subvault.db",
		},
		Cache: CacheConfig{
			Path:         "./data/cache",
			MetadataTTL:  time.Hour,
			ContentTTL:   24 * time.Hour,
			SearchTTL:    30 * time.Minute,
			LanguagesTTL: time.Hour,
			MaxCacheSize: 100 * 1024 * 1024, // 100MB
		},
		Providers: ProvidersConfig{
			OpenSubtitles: OpenSubtitlesConfig{
				BaseURL: "https://api.opensubtitles.com/api/v1",
			},
			SubDB: SubDBConfig{
				BaseURL:   "http://api.thesubdb.com",
				UserAgent: "SubDB/1.0 (subvault/1.0; https://github.com/shapedtime/subvault)",
			},
		},
		Limits: LimitsConfig{
			APICallsPerMinute:  60,
			ConcurrentRequests: 5,
			RetryAttempts:      3,
			RetryBaseDelay:     time.Second,
			MaxSubtitleSize:    5 * 1024 * 1024, // 5MB
		},
		Subtitles: SubtitlesConfig{
			CacheDuration:     24 * time.Hour,
			DefaultFormat:     "srt",
			OutputFormats:     []string{"srt", "vtt", "ass"},
			PriorityLanguages: []string{"en", "es", "fr", "de", "hi", "ta", "si", "ar", "ru", "zh"},
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}
	if c.Limits.RetryAttempts < 1 {
		return fmt.Errorf("limits.retry_attempts must be at least 1")
	}
	if c.Limits.ConcurrentRequests < 1 {
		return fmt.Errorf("limits.concurrent_requests must be at least 1")
	}
	return nil
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Cache.Path,
	}
	if c.Database.Driver == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

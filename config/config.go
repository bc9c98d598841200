package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ecolens/backend/internal/infrastructure/logger"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	OpenFoodFacts OpenFoodFactsConfig
	Cache         CacheConfig
	Detection     DetectionConfig
	Matching      MatchingConfig
	RateLimit     RateLimitConfig
	Log           LogConfig

	v *viper.Viper
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OpenFoodFactsConfig holds OpenFoodFacts API configuration
type OpenFoodFactsConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryMax          int           `mapstructure:"retry_max"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	CategoryPageSize  int           `mapstructure:"category_page_size"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DetectionConfig holds the page orchestration policy
type DetectionConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	NavigationDelay time.Duration `mapstructure:"navigation_delay"`
	DebounceDelay   time.Duration `mapstructure:"debounce_delay"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	SlowRenderHosts []string      `mapstructure:"slow_render_hosts"`
	AutoPopup       bool          `mapstructure:"auto_popup"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
	ViewportHeight  float64       `mapstructure:"viewport_height"`
	MaxContexts     int           `mapstructure:"max_contexts"`
}

// MatchingConfig holds the food classifier settings
type MatchingConfig struct {
	CategoryThreshold    float64 `mapstructure:"category_threshold"`
	DescriptionThreshold float64 `mapstructure:"description_threshold"`
	CorpusPath           string  `mapstructure:"corpus_path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading path instead of searching
// the default locations when path is set
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ecolens/")
	}

	// Environment variable settings
	v.SetEnvPrefix("ECOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.v = v
	return &config, nil
}

// Watch reloads the config file whenever it changes and hands the result to
// onChange. A reload that fails validation is reported with a nil config. It
// returns false when no config file is in use.
func (c *Config) Watch(onChange func(*Config, error)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}
	c.v.OnConfigChange(func(fsnotify.Event) {
		onChange(decode(c.v))
	})
	c.v.WatchConfig()
	return true
}

// FileUsed returns the config file path, or "" when running on env and defaults
func (c *Config) FileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// loadEnvFile loads a .env file from the working directory without
// overriding variables that are already set
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// OpenFoodFacts defaults
	v.SetDefault("openfoodfacts.base_url", "https://world.openfoodfacts.net")
	v.SetDefault("openfoodfacts.user_agent", "EcoLens/1.0 (ecolens@example.com)")
	v.SetDefault("openfoodfacts.timeout", "30s")
	v.SetDefault("openfoodfacts.retry_max", 2)
	v.SetDefault("openfoodfacts.requests_per_second", 10.0/60.0)
	v.SetDefault("openfoodfacts.burst", 5)
	v.SetDefault("openfoodfacts.category_page_size", 20)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "ecolens:")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.cleanup_interval", "10m")

	// Detection defaults
	v.SetDefault("detection.max_retries", 5)
	v.SetDefault("detection.navigation_delay", "1500ms")
	v.SetDefault("detection.debounce_delay", "500ms")
	v.SetDefault("detection.retry_delay", "2s")
	v.SetDefault("detection.slow_render_hosts", []string{"amazon."})
	v.SetDefault("detection.auto_popup", true)
	v.SetDefault("detection.lookup_timeout", "15s")
	v.SetDefault("detection.viewport_height", 900)
	v.SetDefault("detection.max_contexts", 1000)

	// Matching defaults
	v.SetDefault("matching.category_threshold", 0.8)
	v.SetDefault("matching.description_threshold", 0.7)
	v.SetDefault("matching.corpus_path", "")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required (set ECOLENS_SERVER_PORT)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when cache type is 'redis'")
	}

	if !inUnitInterval(config.Matching.CategoryThreshold) || !inUnitInterval(config.Matching.DescriptionThreshold) {
		return fmt.Errorf("matching thresholds must be in (0, 1], got: %v and %v",
			config.Matching.CategoryThreshold, config.Matching.DescriptionThreshold)
	}

	if config.Detection.MaxRetries < 1 {
		return fmt.Errorf("detection max_retries must be at least 1, got: %d", config.Detection.MaxRetries)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit per_ip must not be negative, got: %d", config.RateLimit.PerIP)
	}

	if _, err := logger.ParseLevel(config.Log.Level); err != nil {
		return err
	}

	return nil
}

func inUnitInterval(f float64) bool {
	return f > 0 && f <= 1
}

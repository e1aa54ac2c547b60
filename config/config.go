package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

// ClassifierConfig selects and configures the skin tone classifier
type ClassifierConfig struct {
	Mode              string        `mapstructure:"mode"` // "cloud", "local" or "mock"
	FallbackPolicy    string        `mapstructure:"fallback_policy"`
	FallbackTone      string        `mapstructure:"fallback_tone"`
	MaxDimension      int           `mapstructure:"max_dimension"`
	Timeout           time.Duration `mapstructure:"timeout"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// CatalogConfig holds product catalog configuration
type CatalogConfig struct {
	Path string `mapstructure:"path"` // empty uses the embedded catalog
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// RecommendConfig holds the per-category limits for recommendations
type RecommendConfig struct {
	DefaultPerCategory int `mapstructure:"default_per_category"`
	MaxPerCategory     int `mapstructure:"max_per_category"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

var (
	classifierModes  = []string{"cloud", "local", "mock"}
	fallbackPolicies = []string{"fixed", "random"}
	skinTones        = []string{"fair", "medium", "dark"}
	logLevels        = []string{"", "debug", "info", "warn", "error"}
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shadematch/")

	// SHADEMATCH_CLASSIFIER_API_KEY -> classifier.api_key
	v.SetEnvPrefix("SHADEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv overrides are seen by Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Classifier defaults
	v.SetDefault("classifier.mode", "local")
	v.SetDefault("classifier.fallback_policy", "fixed")
	v.SetDefault("classifier.fallback_tone", "medium")
	v.SetDefault("classifier.max_dimension", 800)
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.requests_per_second", 2.0)

	// Catalog defaults
	v.SetDefault("catalog.path", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.burst", 20)

	// Recommendation defaults
	v.SetDefault("recommend.default_per_category", 3)
	v.SetDefault("recommend.max_per_category", 10)

	// Logging defaults
	v.SetDefault("logging.level", "")
}

// validate validates the configuration
func validate(config *Config) error {
	// CORS responses allow credentials, so every origin must be named
	if slices.Contains(config.Server.AllowedOrigins, "*") {
		return fmt.Errorf("allowed origins must list explicit origins, '*' is not accepted")
	}

	if !slices.Contains(classifierModes, config.Classifier.Mode) {
		return fmt.Errorf("classifier mode must be one of %v, got: %s", classifierModes, config.Classifier.Mode)
	}

	if config.Classifier.Mode == "cloud" && config.Classifier.APIKey == "" {
		return fmt.Errorf("classifier API key is required in cloud mode (set SHADEMATCH_CLASSIFIER_API_KEY)")
	}

	if !slices.Contains(fallbackPolicies, config.Classifier.FallbackPolicy) {
		return fmt.Errorf("fallback policy must be 'fixed' or 'random', got: %s", config.Classifier.FallbackPolicy)
	}

	if !slices.Contains(skinTones, config.Classifier.FallbackTone) {
		return fmt.Errorf("fallback tone must be one of %v, got: %s", skinTones, config.Classifier.FallbackTone)
	}

	if config.Classifier.MaxDimension < 0 {
		return fmt.Errorf("classifier max dimension must not be negative")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Recommend.MaxPerCategory < 1 {
		return fmt.Errorf("max per category must be at least 1")
	}

	if config.Recommend.DefaultPerCategory < 1 || config.Recommend.DefaultPerCategory > config.Recommend.MaxPerCategory {
		return fmt.Errorf("default per category must be within 1..%d, got: %d",
			config.Recommend.MaxPerCategory, config.Recommend.DefaultPerCategory)
	}

	if !slices.Contains(logLevels, strings.ToLower(config.Logging.Level)) {
		return fmt.Errorf("log level must be one of debug, info, warn, error, got: %s", config.Logging.Level)
	}

	return nil
}

// loadEnvFile exports the variables in ./.env without overriding ones already set
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional reference master source)
	Database DatabaseConfig

	// Redis (optional cache / snapshot mirror)
	Redis RedisConfig

	// Live order book feed
	Feed FeedConfig

	// Reference master list
	Reference ReferenceConfig

	// Refresh loop
	Refresh RefreshConfig

	// Market calendar
	Market MarketConfig

	// Symbols of interest; empty means all
	Watchlist []string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// FeedConfig describes the live bond order book endpoint
type FeedConfig struct {
	BaseURL   string // handshake (cookie bootstrap) URL
	URL       string // order book endpoint
	Referer   string
	UserAgent string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// ReferenceConfig describes where the instrument master list comes from
type ReferenceConfig struct {
	Source   string // file, url, postgres
	Path     string // CSV path for the file source
	URL      string // CSV URL for the url source
	Table    string // table name for the postgres source
	CacheTTL time.Duration
	Schedule string // cron spec for the daily rebuild
}

// RefreshConfig controls the producer loop cadence
type RefreshConfig struct {
	Interval          time.Duration
	MaxBackoff        time.Duration
	BreakerFailures   int
	BreakerTimeout    time.Duration
	SnapshotMirrorTTL time.Duration
}

// MarketConfig holds exchange calendar settings
type MarketConfig struct {
	Timezone string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile reads the environment and then applies an optional YAML overlay
func LoadWithFile(path string) (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Feed: FeedConfig{
			BaseURL:   getEnv("FEED_BASE_URL", "https://www.nseindia.com"),
			URL:       getEnv("FEED_URL", "https://www.nseindia.com/api/liveBonds-traded-on-cm?type=gsec"),
			Referer:   getEnv("FEED_REFERER", "https://www.nseindia.com/market-data/bonds-traded-in-capital-market"),
			UserAgent: getEnv("FEED_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"),
			Timeout:   getEnvAsDuration("FEED_TIMEOUT", "15s"),
			RateLimit: getEnvAsFloat("FEED_RATE_LIMIT", 3),
		},

		Reference: ReferenceConfig{
			Source:   getEnv("REFERENCE_SOURCE", "url"),
			Path:     getEnv("REFERENCE_PATH", "DEBT.csv"),
			URL:      getEnv("REFERENCE_URL", "https://nsearchives.nseindia.com/content/equities/DEBT.csv"),
			Table:    getEnv("REFERENCE_TABLE", "debt_master"),
			CacheTTL: getEnvAsDuration("REFERENCE_CACHE_TTL", "1h"),
			Schedule: getEnv("REFERENCE_SCHEDULE", "0 5 0 * * *"),
		},

		Refresh: RefreshConfig{
			Interval:          getEnvAsDuration("REFRESH_INTERVAL", "5s"),
			MaxBackoff:        getEnvAsDuration("REFRESH_MAX_BACKOFF", "1m"),
			BreakerFailures:   getEnvAsInt("REFRESH_BREAKER_FAILURES", 5),
			BreakerTimeout:    getEnvAsDuration("REFRESH_BREAKER_TIMEOUT", "30s"),
			SnapshotMirrorTTL: getEnvAsDuration("SNAPSHOT_MIRROR_TTL", "1m"),
		},

		Market: MarketConfig{
			Timezone: getEnv("MARKET_TZ", "Asia/Kolkata"),
		},

		Watchlist: getEnvAsList("WATCHLIST"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Location returns the exchange time zone, falling back to a fixed IST offset
// when the tz database is unavailable.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if c.Refresh.MaxBackoff < c.Refresh.Interval {
		return fmt.Errorf("REFRESH_MAX_BACKOFF must be >= REFRESH_INTERVAL")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL is required")
	}

	switch c.Reference.Source {
	case "file":
		if c.Reference.Path == "" {
			return fmt.Errorf("REFERENCE_PATH is required for the file source")
		}
	case "url":
		if c.Reference.URL == "" {
			return fmt.Errorf("REFERENCE_URL is required for the url source")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres source")
		}
	default:
		return fmt.Errorf("REFERENCE_SOURCE must be one of: file, url, postgres")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// INCC index ingestion
	INCC INCCConfig

	// Logging
	LogLevel  string
	LogFormat string
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

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// INCCConfig holds the index publisher and snapshot settings
type INCCConfig struct {
	SourceURL         string
	SeriesPath        string
	FetchTimeout      time.Duration
	LockWait          time.Duration
	LockStaleAfter    time.Duration
	LockBackend       string // file, redis
	RefreshSchedule   string // cron with seconds
	RequestsPerSecond float64
}

// Lock backends
const (
	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

// DefaultSourceURL is the Secovi monthly INCC page
const DefaultSourceURL = "https://indiceseconomicos.secovi.com.br/indicadormensal.php?idindicador=59"

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		INCC: INCCConfig{
			SourceURL:         getEnv("INCC_SOURCE_URL", DefaultSourceURL),
			SeriesPath:        getEnv("INCC_SERIES_PATH", filepath.Join("data", "dados_dia01_indice.csv")),
			FetchTimeout:      getEnvAsDuration("INCC_FETCH_TIMEOUT", "20s"),
			LockWait:          getEnvAsDuration("INCC_LOCK_WAIT", "10s"),
			LockStaleAfter:    getEnvAsDuration("INCC_LOCK_STALE_AFTER", "2m"),
			LockBackend:       getEnv("INCC_LOCK_BACKEND", LockBackendFile),
			RefreshSchedule:   getEnv("INCC_REFRESH_SCHEDULE", "0 0 6 * * *"),
			RequestsPerSecond: getEnvAsFloat("INCC_REQUESTS_PER_SECOND", 1),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.INCC.SeriesPath == "" {
		return fmt.Errorf("INCC_SERIES_PATH is required")
	}
	if c.INCC.FetchTimeout <= 0 {
		return fmt.Errorf("INCC_FETCH_TIMEOUT must be positive")
	}
	// Losers wait a bounded time for the winning regeneration.
	if c.INCC.LockWait <= 0 || c.INCC.LockWait > 10*time.Second {
		return fmt.Errorf("INCC_LOCK_WAIT must be in (0s, 10s]")
	}

	switch c.INCC.LockBackend {
	case LockBackendFile:
	case LockBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("INCC_LOCK_BACKEND=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("INCC_LOCK_BACKEND must be one of: file, redis")
	}

	return nil
}

// RequireDatabase reports an error when no database is configured.
// Only the registry-backed commands need one.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// Package config loads application configuration from environment
// variables with sensible defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Oqu Platform API
	Oqu OquConfig

	// Engine
	Engine EngineConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Feature flags
	Features *FeatureFlags
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string

	// Graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Disabled runs the engine without the cohort cache.
	Disabled bool
}

// OquConfig holds Oqu platform API settings.
type OquConfig struct {
	BaseURL string
	APIKey  string

	RequestTimeout time.Duration

	// Rate limiting.
	RequestsPerSecond float64
	RateLimitBurst    int

	// Circuit breaker settings.
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// EngineConfig holds gamification engine settings.
type EngineConfig struct {
	// StreakGraceDays is how many full calendar days after the last
	// activity day a streak survives without activity.
	StreakGraceDays int

	// DailyGoalXP is the daily XP target.
	DailyGoalXP int

	// DailyGoalQuizzes is the daily quiz target.
	DailyGoalQuizzes int

	// LeaderboardFreshFor is how long a cached cohort counts as fresh.
	LeaderboardFreshFor time.Duration

	// SyncMaxAttempts bounds retries of a single remote sync call.
	SyncMaxAttempts int
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled bool

	// SyncInterval is how often all ledgers are synchronized.
	SyncInterval time.Duration

	// SyncConcurrency is the fan-out width of the sync sweep.
	SyncConcurrency int

	// LeaderboardInterval is how often cohort caches are warmed.
	LeaderboardInterval time.Duration

	// RolloverHour/RolloverMinute is the platform-local time of the
	// daily rollover job.
	RolloverHour   int
	RolloverMinute int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Oqu:       loadOquConfig(),
		Engine:    loadEngineConfig(),
		Scheduler: loadSchedulerConfig(),
		Features:  LoadFeatureFlags(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Oqu.BaseURL == "" {
		return fmt.Errorf("OQU_BASE_URL is required")
	}
	if c.Engine.DailyGoalXP <= 0 || c.Engine.DailyGoalQuizzes <= 0 {
		return fmt.Errorf("daily goal targets must be positive")
	}
	if c.Engine.StreakGraceDays < 1 {
		return fmt.Errorf("ENGINE_STREAK_GRACE_DAYS must be at least 1")
	}
	return nil
}

// IsProduction returns true in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))

	return AppConfig{
		Name:            getEnv("APP_NAME", "oqu-progress-engine"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		LogLevel:        getEnv("APP_LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		Database:        getEnv("DB_NAME", "oqu_progress"),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		SSLMode:         getEnv("DB_SSLMODE", "require"),
		MaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		MinConns:        getEnvInt("DB_MIN_CONNS", 2),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		Disabled:     getEnvBool("REDIS_DISABLED", false),
	}
}

func loadOquConfig() OquConfig {
	return OquConfig{
		BaseURL:                 getEnv("OQU_BASE_URL", "https://api.oqu.kz"),
		APIKey:                  getEnv("OQU_API_KEY", ""),
		RequestTimeout:          getEnvDuration("OQU_REQUEST_TIMEOUT", 15*time.Second),
		RequestsPerSecond:       getEnvFloat("OQU_RATE_LIMIT_RPS", 5.0),
		RateLimitBurst:          getEnvInt("OQU_RATE_LIMIT_BURST", 10),
		CircuitBreakerThreshold: getEnvInt("OQU_CB_THRESHOLD", 5),
		CircuitBreakerTimeout:   getEnvDuration("OQU_CB_TIMEOUT", 30*time.Second),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		StreakGraceDays:     getEnvInt("ENGINE_STREAK_GRACE_DAYS", 1),
		DailyGoalXP:         getEnvInt("ENGINE_DAILY_GOAL_XP", 50),
		DailyGoalQuizzes:    getEnvInt("ENGINE_DAILY_GOAL_QUIZZES", 3),
		LeaderboardFreshFor: getEnvDuration("ENGINE_LEADERBOARD_FRESH_FOR", 5*time.Minute),
		SyncMaxAttempts:     getEnvInt("ENGINE_SYNC_MAX_ATTEMPTS", 4),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:             getEnvBool("SCHEDULER_ENABLED", true),
		SyncInterval:        getEnvDuration("SCHEDULER_SYNC_INTERVAL", 5*time.Minute),
		SyncConcurrency:     getEnvInt("SCHEDULER_SYNC_CONCURRENCY", 5),
		LeaderboardInterval: getEnvDuration("SCHEDULER_LEADERBOARD_INTERVAL", 10*time.Minute),
		RolloverHour:        getEnvInt("SCHEDULER_ROLLOVER_HOUR", 0),
		RolloverMinute:      getEnvInt("SCHEDULER_ROLLOVER_MINUTE", 5),
	}
}

// PlatformLocation returns the timezone all calendar math runs in.
func PlatformLocation() *time.Location {
	return timeutil.Location()
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

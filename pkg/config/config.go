package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Engine     EngineConfig
	Submission SubmissionConfig
	Cache      CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig governs the dispatch engine: how many days of advance notice a
// proposal must give, how many candidates are tried per event before giving
// up, how close two bookings may sit before counting as an overlap, and the
// cron expression that fires scheduled runs.
type EngineConfig struct {
	MinAdvanceDays   int
	MaxBumpsPerEvent int
	OverlapProximity time.Duration
	RunSchedule      string
	ScheduledRuns    bool
}

// SubmissionConfig configures the external booking gateway client.
type SubmissionConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryInterval time.Duration
	RetrySweep    bool
}

// CacheConfig tunes the review-surface listing cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		MinAdvanceDays:   v.GetInt("ENGINE_MIN_ADVANCE_DAYS"),
		MaxBumpsPerEvent: v.GetInt("ENGINE_MAX_BUMPS_PER_EVENT"),
		OverlapProximity: parseDuration(v.GetString("ENGINE_OVERLAP_PROXIMITY"), 2*time.Hour),
		RunSchedule:      v.GetString("ENGINE_RUN_SCHEDULE"),
		ScheduledRuns:    v.GetBool("ENGINE_SCHEDULED_RUNS"),
	}

	cfg.Submission = SubmissionConfig{
		BaseURL:       v.GetString("SUBMISSION_BASE_URL"),
		Timeout:       parseDuration(v.GetString("SUBMISSION_TIMEOUT"), 10*time.Second),
		RetryInterval: parseDuration(v.GetString("SUBMISSION_RETRY_INTERVAL"), 15*time.Minute),
		RetrySweep:    v.GetBool("SUBMISSION_RETRY_SWEEP"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "crew_dispatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_MIN_ADVANCE_DAYS", 1)
	v.SetDefault("ENGINE_MAX_BUMPS_PER_EVENT", 5)
	v.SetDefault("ENGINE_OVERLAP_PROXIMITY", "2h")
	v.SetDefault("ENGINE_RUN_SCHEDULE", "0 5 * * *")
	v.SetDefault("ENGINE_SCHEDULED_RUNS", false)

	v.SetDefault("SUBMISSION_BASE_URL", "http://localhost:9090")
	v.SetDefault("SUBMISSION_TIMEOUT", "10s")
	v.SetDefault("SUBMISSION_RETRY_INTERVAL", "15m")
	v.SetDefault("SUBMISSION_RETRY_SWEEP", false)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

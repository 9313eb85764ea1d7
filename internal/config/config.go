package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

// DSN builds the key/value connection string understood by the postgres driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins string
	LogLevel       string

	JWTSecret     string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	OTPTTL        time.Duration
	SweepInterval time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
}

// Load reads configuration from environment variables. JWT_SECRET is required;
// everything else falls back to development defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		AllowedOrigins: strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RefreshSecret:  os.Getenv("REFRESH_TOKEN_SECRET"),
		AccessTTL:      getEnvDuration("JWT_EXPIRES_IN", time.Hour),
		RefreshTTL:     getEnvDuration("REFRESH_TOKEN_EXPIRES_IN", 30*24*time.Hour),
		OTPTTL:         getEnvDuration("OTP_TTL", 5*time.Minute),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnvOrDefault("DB_NAME", "tourchat"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90m") and the day suffix used by the
// mobile team's env files ("30d").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if strings.HasSuffix(value, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil || days <= 0 {
			return fallback
		}
		return time.Duration(days) * 24 * time.Hour
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	RateLimit   RateLimitConfig
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AuthConfig carries the session windows: sessions expire eight hours after
// issuance and stop being refreshable thirty days after issuance.
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine in production; values come from the environment.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	loginLimit, _ := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "5"))
	loginWindow, _ := strconv.Atoi(getEnv("LOGIN_RATE_WINDOW_SECONDS", "60"))
	accessHours, _ := strconv.Atoi(getEnv("SESSION_ACCESS_HOURS", "8"))
	refreshDays, _ := strconv.Atoi(getEnv("SESSION_REFRESH_DAYS", "30"))
	bcryptCost, _ := strconv.Atoi(getEnv("BCRYPT_COST", "12"))

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			RateLimit: RateLimitConfig{
				Enabled: getEnv("LOGIN_RATE_LIMIT_ENABLED", "true") == "true",
				Limit:   loginLimit,
				Window:  time.Duration(loginWindow) * time.Second,
			},
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gridauth"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "change-me"),
			AccessTTL:  time.Duration(accessHours) * time.Hour,
			RefreshTTL: time.Duration(refreshDays) * 24 * time.Hour,
			BcryptCost: bcryptCost,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

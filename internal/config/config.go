package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultJWTSecret = "dev-secret-change-me"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required in production")

// Config is built once at startup and passed by pointer into constructors.
// Nothing reads the environment after Load returns.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ServerPort  string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTExpiry time.Duration

	CORSOrigins []string

	// Rate limiting
	RateLimitBackend     string
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration

	// Feature flags
	PasswordResetEnabled bool
}

func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	return FromEnv()
}

// FromEnv reads the configuration from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppName:     getEnv("APP_NAME", "Task Management API"),
		AppVersion:  getEnv("APP_VERSION", "0.1.0"),
		Environment: getEnv("ENVIRONMENT", EnvDevelopment),
		ServerPort:  getEnv("SERVER_PORT", ":8000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpiry: getEnvAsDuration("JWT_EXPIRY", "30m"),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),

		RateLimitBackend:     strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
		RateLimitMaxRequests: getEnvAsPositiveInt("RATE_LIMIT_MAX_REQUESTS", 60),
		RateLimitWindow:      getEnvAsPositiveDuration("RATE_LIMIT_WINDOW", "1m"),

		PasswordResetEnabled: getEnvAsBool("PASSWORD_RESET_ENABLED", false),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingJWTSecret
		}
		log.Println("JWT_SECRET not set, using development default")
		cfg.JWTSecret = defaultJWTSecret
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

// getEnvAsPositiveInt is getEnvAsInt that also rejects values below 1
func getEnvAsPositiveInt(key string, defaultVal int) int {
	val := getEnvAsInt(key, defaultVal)
	if val <= 0 {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsPositiveDuration(key string, defaultVal string) time.Duration {
	duration := getEnvAsDuration(key, defaultVal)
	if duration <= 0 {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %t", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsList(key string, defaultVal []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

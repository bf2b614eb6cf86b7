package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Model API keys are sealed at rest with a key derived from this secret
	ModelKeySecret string

	// Completion providers
	CompletionConcurrency    int
	CompletionTimeoutSeconds int
	ChatRateLimitPerMin      int

	// Publishing
	PublishWebhookURL string
	PublishWorkers    int

	// Frontend
	FrontendURL string
	FrontendDir string
	LoginPath   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		Env:                      getEnvOrDefault("ENV", "development"),
		DatabaseURL:              mustGetEnv("DATABASE_URL"),
		DBMaxConns:               getEnvAsIntOrDefault("DB_MAX_CONNS", 20),
		DBMinConns:               getEnvAsIntOrDefault("DB_MIN_CONNS", 2),
		MigrationsDir:            getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:                 mustGetEnv("REDIS_URL"),
		JWTSecret:                mustGetEnv("JWT_SECRET"),
		ModelKeySecret:           mustGetEnv("MODEL_KEY_SECRET"),
		CompletionConcurrency:    getEnvAsIntOrDefault("COMPLETION_CONCURRENCY", 5),
		CompletionTimeoutSeconds: getEnvAsIntOrDefault("COMPLETION_TIMEOUT_SECONDS", 120),
		ChatRateLimitPerMin:      getEnvAsIntOrDefault("CHAT_RATE_LIMIT_PER_MIN", 20),
		PublishWebhookURL:        getEnvOrDefault("PUBLISH_WEBHOOK_URL", ""),
		PublishWorkers:           getEnvAsIntOrDefault("PUBLISH_WORKERS", 2),
		FrontendURL:              getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		FrontendDir:              getEnvOrDefault("FRONTEND_DIR", "./web"),
		LoginPath:                getEnvOrDefault("LOGIN_PATH", "/login"),
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// Package config provides environment-based configuration management
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds database connection parameters
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// AutoMigrate creates missing tables at startup
	AutoMigrate bool
}

// RedisConfig holds Redis connection parameters
type RedisConfig struct {
	Addr     string // Format: host:port
	Password string
	DB       int
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Port            int
	LogLevel        slog.Level
	MeshSecret      string // guards /ws/logs and the AI kill switch
	CORSOrigins     []string
	InvokeRateLimit int
	InvokeRateWin   time.Duration
	LogRetention    time.Duration
	DiskPath        string
	ShutdownTimeout time.Duration
}

// FacebookConfig holds Facebook webhook and Graph API configuration
type FacebookConfig struct {
	AppSecret    string // For HMAC SHA256 signature validation, empty disables it
	VerifyToken  string // For webhook verification handshake
	GraphBaseURL string
	GraphVersion string
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	ManagedAPIKey     string
	ManagedBaseURL    string
	ManagedTextModel  string
	ManagedMediaModel string
	OpenAIBaseURL     string
	GeminiBaseURL     string
	Timeout           time.Duration
}

// NATSConfig holds the execution-log fan-out settings. Empty URL disables publishing.
type NATSConfig struct {
	URL     string
	Subject string
}

// Config aggregates all configuration sections
type Config struct {
	DB       DBConfig
	Redis    RedisConfig
	App      AppConfig
	Facebook FacebookConfig
	AI       AIConfig
	NATS     NATSConfig
}

// LoadConfig reads configuration from environment variables, after an optional .env file.
// Returns error if critical variables are missing.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	// Database
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "commerce_agent")
	cfg.DB.AutoMigrate = getEnvAsBool("DB_AUTO_MIGRATE", true)

	if cfg.DB.Password == "" {
		return nil, fmt.Errorf("DB_PASS environment variable is required")
	}

	// Redis
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Application
	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.LogLevel = parseLevel(getEnv("LOG_LEVEL", "info"))
	cfg.App.MeshSecret = getEnv("MESH_SECRET", "")
	cfg.App.CORSOrigins = getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"})
	cfg.App.InvokeRateLimit = getEnvAsInt("INVOKE_RATE_LIMIT", 60)
	cfg.App.InvokeRateWin = getEnvAsDuration("INVOKE_RATE_WINDOW", time.Minute)
	cfg.App.LogRetention = getEnvAsDuration("LOG_RETENTION", 7*24*time.Hour)
	cfg.App.DiskPath = getEnv("DISK_PATH", "/")
	cfg.App.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	// Facebook
	cfg.Facebook.AppSecret = getEnv("FB_APP_SECRET", "")
	cfg.Facebook.VerifyToken = getEnv("FB_VERIFY_TOKEN", "")
	cfg.Facebook.GraphBaseURL = getEnv("FB_GRAPH_BASE_URL", "https://graph.facebook.com")
	cfg.Facebook.GraphVersion = getEnv("FB_GRAPH_VERSION", "v19.0")

	if cfg.Facebook.VerifyToken == "" {
		return nil, fmt.Errorf("FB_VERIFY_TOKEN environment variable is required")
	}

	// AI
	cfg.AI.ManagedAPIKey = getEnv("MANAGED_AI_API_KEY", "")
	cfg.AI.ManagedBaseURL = getEnv("MANAGED_AI_BASE_URL", "")
	cfg.AI.ManagedTextModel = getEnv("MANAGED_AI_TEXT_MODEL", "gpt-4o-mini")
	cfg.AI.ManagedMediaModel = getEnv("MANAGED_AI_MEDIA_MODEL", "gpt-4o")
	cfg.AI.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", "")
	cfg.AI.GeminiBaseURL = getEnv("GEMINI_BASE_URL", "")
	cfg.AI.Timeout = getEnvAsDuration("AI_TIMEOUT", 60*time.Second)

	// NATS
	cfg.NATS.URL = getEnv("NATS_URL", "")
	cfg.NATS.Subject = getEnv("NATS_SUBJECT", "agent.execution")

	return cfg, nil
}

// GetDSN returns MariaDB connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv reads environment variable with fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads environment variable as integer with fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "168h")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Intake   IntakeConfig
}

// DatabaseConfig holds persistence configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" | "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	RedisURL         string // when set, writers serialize through a redis lock
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// ExtractConfig holds document preparation configuration
type ExtractConfig struct {
	Pdftotext         string
	Pdftoppm          string
	DPI               int
	MaxPages          int
	ImageMaxDimension int
}

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Provider          string // "openai" | "gemini"
	Model             string
	APIKey            string
	BaseURL           string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerSecond float64
}

// IntakeConfig holds batch and daemon configuration
type IntakeConfig struct {
	Workers      int
	InboxDir     string
	Timezone     string
	LayoutPath   string
	SeenTTL      time.Duration
	ProcessLimit time.Duration
}

// LoadConfig loads configuration from environment variables, reading a .env file first when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config.dotenv_load_failed", "error", err)
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "./data/orders.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
			LockTimeout:      getEnvAsDuration("DB_LOCK_TIMEOUT", 10*time.Second),
			RedisURL:         getEnv("REDIS_URL", ""),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		Extract: ExtractConfig{
			Pdftotext:         getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:          getEnv("PDFTOPPM_BIN", "pdftoppm"),
			DPI:               getEnvAsInt("PDF_RASTER_DPI", 200),
			MaxPages:          getEnvAsInt("PDF_MAX_PAGES", 4),
			ImageMaxDimension: getEnvAsInt("IMAGE_MAX_DIMENSION", 2048),
		},
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:             getEnv("LLM_MODEL", "gpt-4o"),
			APIKey:            getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:           getEnv("LLM_BASE_URL", ""),
			Temperature:       getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			RequestsPerSecond: float64(getEnvAsFloat32("LLM_RPS", 1)),
		},
		Intake: IntakeConfig{
			Workers:      getEnvAsInt("INTAKE_WORKERS", 4),
			InboxDir:     getEnv("INTAKE_INBOX_DIR", ""),
			Timezone:     getEnv("INTAKE_TIMEZONE", "Asia/Tokyo"),
			LayoutPath:   getEnv("EXPORT_LAYOUT_PATH", ""),
			SeenTTL:      getEnvAsDuration("INTAKE_SEEN_TTL", 12*time.Hour),
			ProcessLimit: getEnvAsDuration("INTAKE_PROCESS_TIMEOUT", 3*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Location resolves the intake timezone, falling back to UTC.
func (c IntakeConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be openai or gemini", ErrInvalidInput)
	}
	if c.Intake.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "INTAKE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}

// LogLevel maps LOG_LEVEL to a slog level.
func LogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

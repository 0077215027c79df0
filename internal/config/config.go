package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/formfill/internal/database"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Extraction ExtractionConfig
	Session    SessionConfig
	Database   DatabaseConfig
	LogLevel   slog.Level
}

type ServerConfig struct {
	Port          string
	WebDir        string
	UploadDir     string
	MaxUploadSize int64
}

type ExtractionConfig struct {
	URL     string
	Timeout time.Duration
}

type SessionConfig struct {
	StatusInterval time.Duration
	TTL            time.Duration
	TemplatesFile  string
}

// DatabaseConfig selects the audit store. Type "none" disables it.
type DatabaseConfig struct {
	Type       string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SQLitePath string
}

// Load reads an optional .env file (existing environment variables win)
// and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// FromEnv builds the configuration from environment variables.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			WebDir:        getEnv("WEB_DIR", "./web"),
			UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_SIZE", 20<<20),
		},
		Extraction: ExtractionConfig{
			URL:     getEnv("EXTRACTION_URL", "http://127.0.0.1:8000"),
			Timeout: getEnvAsDuration("EXTRACTION_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			StatusInterval: getEnvAsDuration("STATUS_INTERVAL", 4*time.Second),
			TTL:            getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			TemplatesFile:  getEnv("TEMPLATES_FILE", ""),
		},
		Database: DatabaseConfig{
			Type:       getEnv("DB_TYPE", "sqlite"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "formfill"),
			Password:   getEnv("DB_PASSWORD", "formfill_dev"),
			Name:       getEnv("DB_NAME", "formfill"),
			SQLitePath: getEnv("DB_PATH", "./formfill.db"),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// DB returns the database configuration for database.NewDB, or false when
// auditing is disabled.
func (c *Config) DB() (database.Config, bool) {
	if c.Database.Type == "none" {
		return database.Config{}, false
	}
	return database.Config{
		Type:       c.Database.Type,
		Host:       c.Database.Host,
		Port:       c.Database.Port,
		User:       c.Database.User,
		Password:   c.Database.Password,
		Name:       c.Database.Name,
		SQLitePath: c.Database.SQLitePath,
	}, true
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	} else if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", c.Server.Port))
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}

	u, err := url.Parse(c.Extraction.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("EXTRACTION_URL must be an http(s) URL, got %q", c.Extraction.URL))
	}
	if c.Extraction.Timeout <= 0 {
		errs = append(errs, errors.New("EXTRACTION_TIMEOUT must be positive"))
	}
	if c.Session.StatusInterval <= 0 {
		errs = append(errs, errors.New("STATUS_INTERVAL must be positive"))
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("DB_TYPE must be sqlite, postgres or none, got %q", c.Database.Type))
	}

	return errors.Join(errs...)
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err == nil {
			return level
		}
	}
	return defaultValue
}

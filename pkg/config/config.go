package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Storage configuration
	DatabasePath   string `yaml:"database_path"`
	AttachmentsDir string `yaml:"attachments_dir"`

	// HTTP configuration
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`

	// Search configuration
	SearchDefaultLimit int `yaml:"search_default_limit"`

	// Logging and features
	LogLevel      string `yaml:"log_level"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// Load builds configuration from environment variables. When CONFIG_FILE is
// set, values from the YAML file override the environment-derived ones.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress:      getEnv("SERVER_ADDRESS", ":8000"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		DatabasePath:       getEnv("DATABASE_PATH", "rhyolite.db"),
		AttachmentsDir:     getEnv("ATTACHMENTS_DIR", "/tmp/attachments"),
		CORSAllowOrigins:   splitCSV(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:10000")),
		SearchDefaultLimit: getEnvInt("SEARCH_DEFAULT_LIMIT", 100),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", false),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.AttachmentsDir == "" {
		return fmt.Errorf("attachments directory must not be empty")
	}
	if c.SearchDefaultLimit <= 0 {
		return fmt.Errorf("search default limit must be positive, got %d", c.SearchDefaultLimit)
	}
	return nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a fallback default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a fallback default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

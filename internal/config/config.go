package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/anime-shed/vision-analysis-go/internal/errors"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	SourceFetchTimeout time.Duration
	MaxRequestBodySize int64

	VisionEndpoint string
	VisionKey      string

	BlobConnectionString string
	BlobTempContainer    string
	BlobCleanupEnabled   bool

	LogLevel  string
	LogFormat string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads the configuration from the environment. A .env file in
// the working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		SourceFetchTimeout: parseDurationOrDefault("SOURCE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 0),

		VisionEndpoint: strings.TrimSpace(os.Getenv("AZURE_VISION_ENDPOINT")),
		VisionKey:      strings.TrimSpace(os.Getenv("AZURE_VISION_KEY")),

		BlobConnectionString: strings.TrimSpace(os.Getenv("BLOB_CONNECTION_STRING")),
		BlobTempContainer:    strings.TrimSpace(os.Getenv("BLOB_TEMP_CONTAINER")),
		BlobCleanupEnabled:   parseBoolOrDefault("BLOB_CLEANUP_ENABLED", false),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("invalid PORT: %q", cfg.Port), err)
	}
	if cfg.MaxRequestBodySize < 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("MAX_REQUEST_BODY_SIZE must be >= 0 (got %d)", cfg.MaxRequestBodySize), nil)
	}
	return cfg, nil
}

// ValidateVision checks the settings the vision client cannot start without.
func (c *Config) ValidateVision() error {
	var missing []string
	if c.VisionEndpoint == "" {
		missing = append(missing, "AZURE_VISION_ENDPOINT")
	}
	if c.VisionKey == "" {
		missing = append(missing, "AZURE_VISION_KEY")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationError(
			"vision service credentials are not configured: set "+strings.Join(missing, " and "), nil).
			WithDetails("missing=" + strings.Join(missing, ","))
	}
	return nil
}

// ValidateStorage checks the settings required by the upload path.
func (c *Config) ValidateStorage() error {
	var missing []string
	if c.BlobConnectionString == "" {
		missing = append(missing, "BLOB_CONNECTION_STRING")
	}
	if c.BlobTempContainer == "" {
		missing = append(missing, "BLOB_TEMP_CONTAINER")
	}
	if len(missing) > 0 {
		return apperrors.NewConfigurationError(
			"temporary blob storage is not configured: set "+strings.Join(missing, " and "), nil).
			WithDetails("missing=" + strings.Join(missing, ","))
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

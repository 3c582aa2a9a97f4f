package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Centers CentersConfig
	Azure   AzureConfig
	Host    HostConfig
	Backoff BackoffConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// CentersConfig locates the per-center configuration files
type CentersConfig struct {
	Dir      string
	CacheMax int
}

// AzureConfig holds the document-analysis service credentials
type AzureConfig struct {
	Endpoint string
	Key      string
}

// HostConfig holds spreadsheet-host settings
type HostConfig struct {
	AccessToken        string
	TemplateID         string
	FolderID           string
	ForceGenericCreate bool
	GroupParallelism   int
}

// BackoffConfig overrides the retry policy for host calls
type BackoffConfig struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  getEnvAsInt64("HTTP_MAX_UPLOAD_BYTES", 64<<20),
		},
		Centers: CentersConfig{
			Dir:      getEnv("CENTERS_DIR", "./centers"),
			CacheMax: getEnvAsInt("CENTERS_CACHE_MAX", 64),
		},
		Azure: AzureConfig{
			Endpoint: getEnv("AZURE_DI_ENDPOINT", ""),
			Key:      getEnv("AZURE_DI_KEY", ""),
		},
		Host: HostConfig{
			AccessToken:        getEnv("HOST_ACCESS_TOKEN", ""),
			TemplateID:         getEnv("TEMPLATE_SPREADSHEET_ID", ""),
			FolderID:           getEnv("OUTPUT_FOLDER_ID", ""),
			ForceGenericCreate: getEnvAsBool("FORCE_GENERIC_CREATE", false),
			GroupParallelism:   getEnvAsInt("GROUP_PARALLELISM", 4),
		},
		Backoff: BackoffConfig{
			Retries: getEnvAsInt("HOST_RETRIES", 6),
			Base:    getEnvAsDuration("HOST_RETRY_BASE", 600*time.Millisecond),
			Max:     getEnvAsDuration("HOST_RETRY_MAX", 30*time.Second),
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Centers.Dir == "" {
		return NewAppError("CONFIG_ERROR", "CENTERS_DIR is required", ErrInvalidInput)
	}
	return nil
}

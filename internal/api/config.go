package api

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the API configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Async publisher configuration
	PublishQueueSize int
	PublishWorkers   int
	PublishRetries   int

	RequestTimeout  int
	ShutdownTimeout int
	MetricsPath     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	queueSize, err := strconv.Atoi(getEnvOrDefault("PUBLISH_QUEUE_SIZE", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_QUEUE_SIZE: %w", err)
	}

	workers, err := strconv.Atoi(getEnvOrDefault("PUBLISH_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_WORKERS: %w", err)
	}

	retries, err := strconv.Atoi(getEnvOrDefault("PUBLISH_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_RETRIES: %w", err)
	}

	requestTimeout, err := strconv.Atoi(getEnvOrDefault("REQUEST_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := strconv.Atoi(getEnvOrDefault("SHUTDOWN_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	if workers < 1 {
		return nil, fmt.Errorf("invalid PUBLISH_WORKERS: must be positive")
	}

	return &Config{
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             port,
		PublishQueueSize: queueSize,
		PublishWorkers:   workers,
		PublishRetries:   retries,
		RequestTimeout:   requestTimeout,
		ShutdownTimeout:  shutdownTimeout,
		MetricsPath:      getEnvOrDefault("METRICS_PATH", "/metrics"),
	}, nil
}

// Address returns the listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

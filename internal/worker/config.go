package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds replica worker configuration
type Config struct {
	// Worker identification
	WorkerID   string
	WorkerName string

	// Processing settings
	BatchSize             int
	BatchTimeout          time.Duration
	ProcessingConcurrency int
	ApplyTimeout          time.Duration

	// Startup sync pulls every entry from a CoolDB server before consuming events
	StartupSyncEnabled bool
	SourceURL          string
	SyncConcurrency    int

	// Monitoring
	MetricsInterval time.Duration
	HealthCheckPort int
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	batchSize, err := strconv.Atoi(getEnvOrDefault("WORKER_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
	}

	batchTimeout, err := time.ParseDuration(getEnvOrDefault("WORKER_BATCH_TIMEOUT", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BATCH_TIMEOUT: %w", err)
	}

	processingConcurrency, err := strconv.Atoi(getEnvOrDefault("WORKER_PROCESSING_CONCURRENCY", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_PROCESSING_CONCURRENCY: %w", err)
	}

	applyTimeout, err := time.ParseDuration(getEnvOrDefault("WORKER_APPLY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_APPLY_TIMEOUT: %w", err)
	}

	startupSync, err := strconv.ParseBool(getEnvOrDefault("WORKER_STARTUP_SYNC", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_STARTUP_SYNC: %w", err)
	}

	syncConcurrency, err := strconv.Atoi(getEnvOrDefault("WORKER_SYNC_CONCURRENCY", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_SYNC_CONCURRENCY: %w", err)
	}

	metricsInterval, err := time.ParseDuration(getEnvOrDefault("WORKER_METRICS_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_METRICS_INTERVAL: %w", err)
	}

	healthCheckPort, err := strconv.Atoi(getEnvOrDefault("WORKER_HEALTH_PORT", "8081"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_HEALTH_PORT: %w", err)
	}

	if batchSize <= 0 {
		return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: must be positive")
	}
	if processingConcurrency <= 0 {
		return nil, fmt.Errorf("invalid WORKER_PROCESSING_CONCURRENCY: must be positive")
	}

	workerID := getEnvOrDefault("WORKER_ID", generateWorkerID())

	return &Config{
		WorkerID:              workerID,
		WorkerName:            getEnvOrDefault("WORKER_NAME", "cooldb-replica-"+workerID),
		BatchSize:             batchSize,
		BatchTimeout:          batchTimeout,
		ProcessingConcurrency: processingConcurrency,
		ApplyTimeout:          applyTimeout,
		StartupSyncEnabled:    startupSync,
		SourceURL:             os.Getenv("COOLDB_SOURCE_URL"),
		SyncConcurrency:       syncConcurrency,
		MetricsInterval:       metricsInterval,
		HealthCheckPort:       healthCheckPort,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

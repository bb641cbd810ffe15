package snapshot

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the object storage settings for snapshot uploads
type Config struct {
	Endpoint       string // empty means AWS S3
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Prefix         string
	ForcePathStyle bool
	DisableSSL     bool
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	forcePathStyle, err := strconv.ParseBool(getEnvOrDefault("SNAPSHOT_FORCE_PATH_STYLE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_FORCE_PATH_STYLE: %w", err)
	}

	disableSSL, err := strconv.ParseBool(getEnvOrDefault("SNAPSHOT_DISABLE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_DISABLE_SSL: %w", err)
	}

	return &Config{
		Endpoint:       os.Getenv("SNAPSHOT_ENDPOINT"),
		Region:         getEnvOrDefault("SNAPSHOT_REGION", "us-east-1"),
		Bucket:         os.Getenv("SNAPSHOT_BUCKET"),
		AccessKey:      os.Getenv("SNAPSHOT_ACCESS_KEY"),
		SecretKey:      os.Getenv("SNAPSHOT_SECRET_KEY"),
		Prefix:         getEnvOrDefault("SNAPSHOT_PREFIX", "cooldb-snapshots"),
		ForcePathStyle: forcePathStyle,
		DisableSSL:     disableSSL,
	}, nil
}

// Validate checks that an upload target is configured
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("snapshot bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("snapshot region is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

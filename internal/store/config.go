package store

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config selects and configures the storage backend
type Config struct {
	Backend  string
	Redis    RedisConfig
	Postgres PostgresConfig
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string

	// Connection pool settings
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	MaxIdleTime     time.Duration
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() (*Config, error) {
	backend := getEnvOrDefault("STORE_BACKEND", BackendMemory)
	switch backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q", backend)
	}

	redisConfig, err := newRedisConfigFromEnv()
	if err != nil {
		return nil, err
	}

	postgresConfig, err := newPostgresConfigFromEnv()
	if err != nil {
		return nil, err
	}

	return &Config{
		Backend:  backend,
		Redis:    *redisConfig,
		Postgres: *postgresConfig,
	}, nil
}

func newRedisConfigFromEnv() (*RedisConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	poolSize, err := strconv.Atoi(getEnvOrDefault("REDIS_POOL_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
	}

	minIdleConns, err := strconv.Atoi(getEnvOrDefault("REDIS_MIN_IDLE_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_MIN_IDLE_CONNS: %w", err)
	}

	return &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:            port,
		Password:        os.Getenv("REDIS_PASSWORD"),
		DB:              db,
		KeyPrefix:       getEnvOrDefault("REDIS_KEY_PREFIX", "cooldb:"),
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        poolSize,
		MinIdleConns:    minIdleConns,
		MaxIdleTime:     5 * time.Minute,
	}, nil
}

func newPostgresConfigFromEnv() (*PostgresConfig, error) {
	port, err := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
	}

	maxConns, err := strconv.ParseInt(getEnvOrDefault("POSTGRES_MAX_CONNS", "25"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_MAX_CONNS: %w", err)
	}

	minConns, err := strconv.ParseInt(getEnvOrDefault("POSTGRES_MIN_CONNS", "5"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_MIN_CONNS: %w", err)
	}

	return &PostgresConfig{
		Host:            getEnvOrDefault("POSTGRES_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("POSTGRES_USER", "cooldb"),
		Password:        getEnvOrDefault("POSTGRES_PASSWORD", "cooldb"),
		Database:        getEnvOrDefault("POSTGRES_DB", "cooldb"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: 1 * time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, nil
}

// Address returns the Redis server address
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ConnectionString returns a PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

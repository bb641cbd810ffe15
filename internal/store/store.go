package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store persists CoolDB entries. Values are raw JSON documents.
type Store interface {
	// Set creates or replaces the value under key
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Get returns the value under key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// List returns every key in ascending byte order
	List(ctx context.Context) ([]string, error)

	// Count returns the number of stored keys
	Count(ctx context.Context) (int, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error
}

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrEmptyKey    = errors.New("key cannot be empty")
	ErrClosed      = errors.New("store is closed")
)

// Backend names accepted in STORE_BACKEND
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// New opens the backend selected by config
func New(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch config.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, &config.Redis)
	case BackendPostgres:
		return NewPostgresStore(ctx, &config.Postgres)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", config.Backend)
	}
}

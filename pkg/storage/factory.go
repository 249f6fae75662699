package storage

import (
	"fmt"
)

// ProviderType represents the type of storage provider
type ProviderType string

const (
	// FileProviderType stores everything under an output directory
	FileProviderType ProviderType = "file"

	// MemoryProviderType is an in-memory storage provider
	MemoryProviderType ProviderType = "memory"

	// RedisProviderType is a Redis storage provider
	RedisProviderType ProviderType = "redis"
)

// ProviderConfig contains configuration for storage providers
type ProviderConfig struct {
	// Type is the type of storage provider to create
	Type ProviderType

	// OutputDir is the directory used by the file provider
	OutputDir string

	// Redis contains configuration for the Redis provider
	Redis *RedisProviderConfig
}

// NewProvider creates a new storage provider based on the configuration
func NewProvider(config ProviderConfig) (StorageProvider, error) {
	switch config.Type {
	case FileProviderType, "":
		if config.OutputDir == "" {
			return nil, fmt.Errorf("output directory is required for file provider")
		}
		return NewFileProvider(config.OutputDir), nil

	case MemoryProviderType:
		return NewMemoryProvider(), nil

	case RedisProviderType:
		if config.Redis == nil {
			return nil, fmt.Errorf("Redis configuration is required for Redis provider")
		}
		provider, err := NewRedisProvider(*config.Redis)
		if err != nil {
			return nil, err
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", config.Type)
	}
}

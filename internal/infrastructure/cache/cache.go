package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// Backend names accepted by New
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store is a CacheRepository the server can health-check and close
type Store interface {
	domain.CacheRepository
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures the cache backend
type Config struct {
	Backend string
	Memory  MemoryConfig
	Redis   RedisConfig
}

// New builds the configured cache backend
func New(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(cfg.Memory, logger), nil
	case BackendRedis:
		return NewRedisCache(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ecolens/backend/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      interface{}
	Expiration time.Time
}

// MemoryConfig configures the in-memory cache
type MemoryConfig struct {
	CleanupInterval time.Duration
	MaxEntries      int
}

// MemoryCache is a thread-safe in-memory cache with TTL support
type MemoryCache struct {
	data       map[string]cacheItem
	mutex      sync.RWMutex
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

// NewMemoryCache creates a new in-memory cache and starts its janitor
func NewMemoryCache(cfg MemoryConfig, logger *zap.Logger) *MemoryCache {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache := &MemoryCache{
		data:       make(map[string]cacheItem),
		maxEntries: cfg.MaxEntries,
		stop:       make(chan struct{}),
		logger:     logger.Named("memory_cache"),
	}

	go cache.cleanupExpired(cfg.CleanupInterval)

	return cache
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists || time.Now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a value in the cache with TTL. Values go through a JSON round
// trip so readers see the same shapes the Redis cache returns.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var storedValue interface{}
	if err := json.Unmarshal(jsonData, &storedValue); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked()
	}

	c.data[key] = cacheItem{
		Value:      storedValue,
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// evictLocked drops expired entries, or failing that the entry closest to expiry
func (c *MemoryCache) evictLocked() {
	now := time.Now()
	var victim string
	var soonest time.Time
	removed := 0
	for key, item := range c.data {
		if now.After(item.Expiration) {
			delete(c.data, key)
			removed++
			continue
		}
		if victim == "" || item.Expiration.Before(soonest) {
			victim, soonest = key, item.Expiration
		}
	}
	if removed == 0 && victim != "" {
		delete(c.data, victim)
		c.logger.Debug("evicted entry", zap.String("key", victim))
	}
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Exists checks if a key exists in the cache and is not expired
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return false, nil
	}
	return !time.Now().After(item.Expiration), nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now()
			removed := 0
			for key, item := range c.data {
				if now.After(item.Expiration) {
					delete(c.data, key)
					removed++
				}
			}
			c.mutex.Unlock()
			if removed > 0 {
				c.logger.Debug("expired entries removed", zap.Int("count", removed))
			}
		}
	}
}

// Size returns the current number of items in the cache
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Ping always succeeds for the in-memory cache
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor goroutine
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Package namecache caches the last known display name per participant so a
// reconnecting peer keeps its name instead of flickering to a placeholder.
package namecache

import (
	"log"
	"sync"
	"time"

	"github.com/skillsync/session-relay/internal/redis"
)

// Cache is the injected name store the presence reconciler consults.
type Cache interface {
	Get(sessionID, userID string) (string, bool)
	Put(sessionID, userID, userName string)
}

const redisTTL = 24 * time.Hour

// RedisCache persists names in a per-session Redis hash, surviving client
// restarts within the session's lifetime.
type RedisCache struct {
	store *redis.Store
}

func NewRedisCache(store *redis.Store) *RedisCache {
	return &RedisCache{store: store}
}

func (c *RedisCache) Get(sessionID, userID string) (string, bool) {
	name, err := c.store.Client().HGet(c.store.Context(), namesKey(sessionID), userID).Result()
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

func (c *RedisCache) Put(sessionID, userID, userName string) {
	client := c.store.Client()
	ctx := c.store.Context()
	if err := client.HSet(ctx, namesKey(sessionID), userID, userName).Err(); err != nil {
		// Cache only; losing a write costs a possible placeholder, not correctness
		log.Printf("Failed to cache name for %s: %v", userID, err)
		return
	}
	client.Expire(ctx, namesKey(sessionID), redisTTL)
}

func namesKey(sessionID string) string {
	return "session:" + sessionID + ":names"
}

// MemoryCache is a process-local Cache for tests and single-client use.
type MemoryCache struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{names: make(map[string]string)}
}

func (c *MemoryCache) Get(sessionID, userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[sessionID+"/"+userID]
	return name, ok
}

func (c *MemoryCache) Put(sessionID, userID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[sessionID+"/"+userID] = userName
}

package namecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()

	_, ok := cache.Get("session-1", "user-1")
	assert.False(t, ok)

	cache.Put("session-1", "user-1", "Alice")
	name, ok := cache.Get("session-1", "user-1")
	assert.True(t, ok)
	assert.Equal(t, "Alice", name)

	// Same user in a different session is a separate entry.
	_, ok = cache.Get("session-2", "user-1")
	assert.False(t, ok)

	cache.Put("session-1", "user-1", "Alice B")
	name, _ = cache.Get("session-1", "user-1")
	assert.Equal(t, "Alice B", name)
}

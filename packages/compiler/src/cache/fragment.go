package cache

import (
	"time"

	"github.com/alphadose/haxmap"
)

// fragment is one cached rendered fragment with its expiry instant; zero
// means the entry does not expire.
type fragment struct {
	value   string
	expires int64
}

// MemoryFragmentCache is the in-process fragment cache backing cache
// directives. Expired entries are dropped lazily on read.
type MemoryFragmentCache struct {
	entries *haxmap.Map[string, fragment]
	now     func() time.Time
}

// NewMemoryFragmentCache creates a new MemoryFragmentCache
func NewMemoryFragmentCache() *MemoryFragmentCache {
	return &MemoryFragmentCache{
		entries: haxmap.New[string, fragment](),
		now:     time.Now,
	}
}

// Get returns the fragment stored under the key if it has not expired
func (c *MemoryFragmentCache) Get(key string) (string, bool) {
	f, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	if f.expires > 0 && c.now().Unix() >= f.expires {
		c.entries.Del(key)
		return "", false
	}
	return f.value, true
}

// Set stores a fragment; a zero TTL never expires
func (c *MemoryFragmentCache) Set(key, value string, ttl time.Duration) {
	f := fragment{value: value}
	if ttl > 0 {
		f.expires = c.now().Add(ttl).Unix()
	}
	c.entries.Set(key, f)
}

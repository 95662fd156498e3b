package beatmap

import (
	"sync"

	"golang.org/x/text/cases"
)

// Cache holds the metadata of the most recently resolved descriptor. Keys
// compare with Unicode case folding so the same file reached through a
// differently cased path still hits.
type Cache struct {
	mu    sync.Mutex
	key   string
	value Metadata
	set   bool
}

func cacheKey(path string) string {
	return cases.Fold().String(path)
}

// Get returns the cached metadata for path.
func (c *Cache) Get(path string) (Metadata, bool) {
	key := cacheKey(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set || c.key != key {
		return Metadata{}, false
	}
	return c.value.clone(), true
}

// Put replaces the single slot.
func (c *Cache) Put(path string, value Metadata) {
	key := cacheKey(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.value = value.clone()
	c.set = true
}

// Reset empties the slot.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = ""
	c.value = Metadata{}
	c.set = false
}

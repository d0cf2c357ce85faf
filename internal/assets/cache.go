package assets

import "sync"

// Cache holds resolved assets by path. It is safe for concurrent use and
// loads each path at most once per successful resolution, so elements that
// share a file share one Asset value.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Asset
}

func NewCache() *Cache {
	return &Cache{items: make(map[string]*Asset)}
}

// Get returns the asset cached under key, calling load to fill it on a miss.
// Failed loads are not cached.
func (c *Cache) Get(key string, load func() (*Asset, error)) (*Asset, error) {
	c.mu.RLock()
	if a, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return a, nil
	}
	c.mu.RUnlock()

	a, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[key]; ok {
		return prev, nil
	}
	c.items[key] = a
	return a, nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

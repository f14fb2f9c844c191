package routing

import "sync"

// SeenCache is the bounded FIFO of recently observed message ids used for
// flood dedup. It is written from both the link receive callback and the
// worker, so every operation takes the mutex.
type SeenCache struct {
	mu  sync.Mutex
	cap int
	ids []uint32
}

// NewSeenCache returns a SeenCache bounded to cap ids.
func NewSeenCache(cap int) *SeenCache {
	return &SeenCache{cap: cap}
}

// Contains reports whether id is in the cache.
func (c *SeenCache) Contains(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range c.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id, evicting the oldest entry if the bound is exceeded.
func (c *SeenCache) Add(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(id)
}

// AddIfNew atomically checks and inserts id, reporting whether it was new.
// The receive path uses this so two frames with the same id racing through
// the callback cannot both be admitted.
func (c *SeenCache) AddIfNew(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range c.ids {
		if v == id {
			return false
		}
	}
	c.add(id)
	return true
}

func (c *SeenCache) add(id uint32) {
	c.ids = append(c.ids, id)
	if len(c.ids) > c.cap {
		c.ids = c.ids[1:]
	}
}

// Len returns the number of cached ids.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

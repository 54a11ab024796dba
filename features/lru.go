package features

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// arrayCache is a fixed-capacity LRU of decoded arrays.
type arrayCache struct {
	mu        sync.Mutex
	capacity  int
	items     map[int64]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	id    int64
	array Array
}

func newArrayCache(capacity int) *arrayCache {
	return &arrayCache{
		capacity:  capacity,
		items:     make(map[int64]*list.Element),
		evictList: list.New(),
	}
}

func (c *arrayCache) get(id int64) (Array, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*cacheEntry).array, true
	}
	c.misses.Add(1)
	return Array{}, false
}

func (c *arrayCache) set(id int64, a Array) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.evictList.MoveToFront(el)
		el.Value.(*cacheEntry).array = a
		return
	}
	c.items[id] = c.evictList.PushFront(&cacheEntry{id: id, array: a})
	for c.evictList.Len() > c.capacity {
		oldest := c.evictList.Back()
		c.evictList.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).id)
	}
}

func (c *arrayCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

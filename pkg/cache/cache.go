package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const janitorInterval = time.Minute

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// LRUCache — потокобезопасный LRU с TTL для горячих заказов.
type LRUCache struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.items[key]
	if !ok {
		return nil, false
	}

	ent := ele.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeElement(ele)
		return nil, false
	}

	c.ll.MoveToFront(ele)
	return ent.value, true
}

func (c *LRUCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, ok := c.items[key]; ok {
		c.ll.MoveToFront(ele)
		ent := ele.Value.(*entry)
		ent.value = value
		ent.expiresAt = time.Now().Add(c.ttl)
		return
	}

	ele := c.ll.PushFront(&entry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)})
	c.items[key] = ele

	if c.ll.Len() > c.capacity {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Start запускает фоновую чистку протухших записей; останавливается
// по отмене контекста.
func (c *LRUCache) Start(ctx context.Context) error {
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *LRUCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ele := c.ll.Back(); ele != nil; {
		prev := ele.Prev()
		if time.Now().After(ele.Value.(*entry).expiresAt) {
			c.removeElement(ele)
		}
		ele = prev
	}
}

func (c *LRUCache) removeElement(ele *list.Element) {
	c.ll.Remove(ele)
	delete(c.items, ele.Value.(*entry).key)
}

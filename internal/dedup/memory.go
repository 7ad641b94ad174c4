package dedup

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache 是单实例部署使用的进程内去重缓存，容量满时淘汰最久未用的键。
type MemoryCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, time.Time]
	now     func() time.Time
}

// NewMemoryCache 创建容量为 size 的缓存。
func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// WithClock 替换时间来源，主要面向测试。
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	if now != nil {
		c.now = now
	}
	return c
}

// ShouldRecord 检查键是否未过期，过期或不存在时写入新的到期时间。
func (c *MemoryCache) ShouldRecord(_ context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiresAt, ok := c.entries.Get(key); ok && now.Before(expiresAt) {
		return false, nil
	}

	c.entries.Add(key, now.Add(window))
	return true, nil
}

// Len 返回当前缓存的键数量。
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

package authz

import (
	"sync"
	"time"
)

// PermissionCache 权限缓存
type PermissionCache struct {
	cache *sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// cacheEntry 缓存条目
type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// NewPermissionCache 创建权限缓存
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	return &PermissionCache{
		cache: &sync.Map{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get 获取缓存
func (c *PermissionCache) Get(key string) (bool, bool) {
	val, found := c.cache.Load(key)
	if !found {
		return false, false
	}

	entry := val.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		// 已过期，删除
		c.cache.Delete(key)
		return false, false
	}

	return entry.value, true
}

// Set 设置缓存
func (c *PermissionCache) Set(key string, value bool) {
	c.cache.Store(key, &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete 删除单个缓存条目
func (c *PermissionCache) Delete(key string) {
	c.cache.Delete(key)
}

// Clear 清空缓存
func (c *PermissionCache) Clear() {
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}

package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig 描述 LRU 缓存的淘汰策略。
type CacheConfig[K comparable, V any] struct {
	// Capacity 限制缓存的条目数量，0 表示不按数量淘汰。
	Capacity int
	// MaxWeight 限制所有条目的权重之和，0 表示不按权重淘汰。
	MaxWeight int
	// TTL 是条目的存活时间，0 表示永不过期。
	TTL time.Duration
}

// item 是链表节点承载的缓存条目。
type item[K comparable, V any] struct {
	key       K
	value     V
	weight    int
	expiresAt time.Time
}

// LRUCache 是线程安全的泛型 LRU 缓存，生成缓存在 Redis 未启用时
// 用它作为进程内降级。
type LRUCache[K comparable, V any] struct {
	config CacheConfig[K, V]

	mu     sync.RWMutex
	order  *list.List // 最近使用的条目在链表头部
	items  map[K]*list.Element
	weight int
}

// NewWithConfig 按给定策略创建缓存。Capacity 与 MaxWeight 至少要设置一个，
// 否则缓存永远不会淘汰任何条目。
func NewWithConfig[K comparable, V any](config CacheConfig[K, V]) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 && config.MaxWeight <= 0 {
		return nil, fmt.Errorf("lru: Capacity 与 MaxWeight 至少需要设置一个")
	}
	return &LRUCache[K, V]{
		config: config,
		order:  list.New(),
		items:  make(map[K]*list.Element),
	}, nil
}

// Get 返回 key 对应的值。过期条目在读取时被动淘汰。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.items[key]
	if !ok {
		return zero, false
	}

	it := element.Value.(*item[K, V])
	if c.config.TTL > 0 && time.Now().After(it.expiresAt) {
		c.remove(element)
		return zero, false
	}

	c.order.MoveToFront(element)
	return it.value, true
}

// Put 写入或更新一个条目。按数量淘汰时 weight 传 1 即可。
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		it := element.Value.(*item[K, V])
		c.weight += weight - it.weight
		it.weight = weight
		it.value = value
		if c.config.TTL > 0 {
			it.expiresAt = time.Now().Add(c.config.TTL)
		}
		c.order.MoveToFront(element)
	} else {
		it := &item[K, V]{key: key, value: value, weight: weight}
		if c.config.TTL > 0 {
			it.expiresAt = time.Now().Add(c.config.TTL)
		}
		c.items[key] = c.order.PushFront(it)
		c.weight += weight
	}

	// 一个大权重条目可能需要挤掉多个旧条目。
	for c.overLimit() {
		if back := c.order.Back(); back != nil {
			c.remove(back)
		}
	}
}

// Len 返回当前条目数量。
func (c *LRUCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Weight 返回当前条目的权重之和。
func (c *LRUCache[K, V]) Weight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weight
}

// overLimit 判断是否超出任一淘汰阈值。调用方需持有写锁。
func (c *LRUCache[K, V]) overLimit() bool {
	if c.config.Capacity > 0 && c.order.Len() > c.config.Capacity {
		return true
	}
	return c.config.MaxWeight > 0 && c.weight > c.config.MaxWeight
}

// remove 把条目同时从链表和索引中摘除。调用方需持有写锁。
func (c *LRUCache[K, V]) remove(e *list.Element) {
	c.order.Remove(e)
	it := e.Value.(*item[K, V])
	delete(c.items, it.key)
	c.weight -= it.weight
}

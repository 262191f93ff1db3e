// Package cache provides the shared search result cache (C7) for the
// RAG pipeline: a cheap way to replay the exact chunk set behind a
// search_id without re-running retrieval.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragcore/internal/model"
)

// DefaultCapacity and DefaultTTL are the search cache defaults used
// when the server is wired without explicit overrides.
const (
	DefaultCapacity = 1000
	DefaultTTL      = time.Hour
)

// SearchCache is the C7 contract: a miss is not an error, and callers
// decide whether to fall back to a fresh search.
type SearchCache interface {
	Put(result *model.SearchResultSet)
	Get(searchID string) (*model.SearchResultSet, bool)
	Evict(searchID string)
}

type memoryEntry struct {
	searchID  string
	result    *model.SearchResultSet
	expiresAt time.Time
}

// MemoryCache is an in-process SearchCache with LRU eviction on Put
// once capacity is exceeded, and lazy expire-on-access for TTL.
// Safe for concurrent use.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	index    map[string]*list.Element
}

// NewMemoryCache creates a MemoryCache. capacity and ttl fall back to
// DefaultCapacity/DefaultTTL when zero.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

var _ SearchCache = (*MemoryCache)(nil)

// Put stores result under its SearchID, evicting the least recently
// used entry if capacity is exceeded.
func (c *MemoryCache) Put(result *model.SearchResultSet) {
	if result == nil || result.SearchID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[result.SearchID]; ok {
		c.order.Remove(el)
		delete(c.index, result.SearchID)
	}

	entry := &memoryEntry{
		searchID:  result.SearchID,
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	}
	el := c.order.PushFront(entry)
	c.index[result.SearchID] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*memoryEntry).searchID)
	}
}

// Get returns the result set for searchID, or (nil, false) on a miss
// or expired entry.
func (c *MemoryCache) Get(searchID string) (*model.SearchResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[searchID]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.index, searchID)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.result, true
}

// Evict removes searchID from the cache, if present.
func (c *MemoryCache) Evict(searchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[searchID]; ok {
		c.order.Remove(el)
		delete(c.index, searchID)
	}
}

// Len reports the number of entries currently held, including
// not-yet-lazily-expired ones.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// RedisCache backs the search cache with Redis, for deployments that
// share the cache across multiple server instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache. ttl falls back to DefaultTTL
// when zero.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

var _ SearchCache = (*RedisCache)(nil)

func redisKey(searchID string) string {
	return "searchcache:" + searchID
}

// Put serializes result to JSON and stores it with the configured TTL.
// Marshal/connection failures are logged but not surfaced: a cache
// write is best-effort.
func (c *RedisCache) Put(result *model.SearchResultSet) {
	if result == nil || result.SearchID == "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("search cache: marshal failed", "search_id", result.SearchID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, redisKey(result.SearchID), data, c.ttl).Err(); err != nil {
		slog.Warn("search cache: put failed", "search_id", result.SearchID, "error", err)
	}
}

// Get fetches and deserializes the result set for searchID.
func (c *RedisCache) Get(searchID string) (*model.SearchResultSet, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, redisKey(searchID)).Bytes()
	if err != nil {
		return nil, false
	}
	var result model.SearchResultSet
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("search cache: unmarshal failed", "search_id", searchID, "error", err)
		return nil, false
	}
	return &result, true
}

// Evict deletes searchID from Redis.
func (c *RedisCache) Evict(searchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, redisKey(searchID)).Err(); err != nil {
		slog.Warn("search cache: evict failed", "search_id", searchID, "error", err)
	}
}

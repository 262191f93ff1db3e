package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/ragcore/internal/model"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, ttl)
}

func TestMemoryCache_PutAndGet(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	result := &model.SearchResultSet{SearchID: "abc", Query: "hello"}
	c.Put(result)

	got, ok := c.Get("abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Query != "hello" {
		t.Errorf("query = %q", got.Query)
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	_, ok := c.Get("missing")
	if ok {
		t.Error("expected miss for unknown search_id")
	}
}

func TestMemoryCache_ExpiresOnAccess(t *testing.T) {
	c := NewMemoryCache(10, 10*time.Millisecond)
	c.Put(&model.SearchResultSet{SearchID: "abc"})

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("abc")
	if ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_EvictsLRUOverCapacity(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	c.Put(&model.SearchResultSet{SearchID: "a"})
	c.Put(&model.SearchResultSet{SearchID: "b"})
	c.Put(&model.SearchResultSet{SearchID: "c"}) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Error("expected 'a' to be evicted as least recently used")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected 'b' to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected 'c' to remain")
	}
}

func TestMemoryCache_GetRefreshesRecency(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	c.Put(&model.SearchResultSet{SearchID: "a"})
	c.Put(&model.SearchResultSet{SearchID: "b"})
	c.Get("a") // "a" becomes most recently used
	c.Put(&model.SearchResultSet{SearchID: "c"}) // should evict "b", not "a"

	if _, ok := c.Get("a"); !ok {
		t.Error("expected 'a' to survive due to recent access")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
}

func TestMemoryCache_Evict(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	c.Put(&model.SearchResultSet{SearchID: "abc"})
	c.Evict("abc")

	if _, ok := c.Get("abc"); ok {
		t.Error("expected entry to be gone after Evict")
	}
}

func TestMemoryCache_PutNilIsNoop(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	c.Put(nil)
	if c.Len() != 0 {
		t.Errorf("expected Len() 0 after Put(nil), got %d", c.Len())
	}
}

func TestMemoryCache_DefaultsAppliedForZeroValues(t *testing.T) {
	c := NewMemoryCache(0, 0)
	if c.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want default %d", c.capacity, DefaultCapacity)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want default %v", c.ttl, DefaultTTL)
	}
}

func TestRedisCache_PutAndGet(t *testing.T) {
	c := newTestRedisCache(t, time.Hour)
	result := &model.SearchResultSet{SearchID: "abc", Query: "hello"}
	c.Put(result)

	got, ok := c.Get("abc")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Query != "hello" {
		t.Errorf("query = %q", got.Query)
	}
}

func TestRedisCache_Miss(t *testing.T) {
	c := newTestRedisCache(t, time.Hour)
	_, ok := c.Get("missing")
	if ok {
		t.Error("expected miss for unknown search_id")
	}
}

func TestRedisCache_Evict(t *testing.T) {
	c := newTestRedisCache(t, time.Hour)
	c.Put(&model.SearchResultSet{SearchID: "abc"})
	c.Evict("abc")

	if _, ok := c.Get("abc"); ok {
		t.Error("expected entry to be gone after Evict")
	}
}

func TestRedisCache_PutNilIsNoop(t *testing.T) {
	c := newTestRedisCache(t, time.Hour)
	c.Put(nil)
	if _, ok := c.Get(""); ok {
		t.Error("expected no entry stored for nil result")
	}
}

func TestRedisCache_DefaultTTLAppliedForZeroValue(t *testing.T) {
	c := newTestRedisCache(t, 0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want default %v", c.ttl, DefaultTTL)
	}
}

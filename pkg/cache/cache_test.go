package cache

import (
	"sync"
	"testing"
	"time"
)

func TestTTLCacheSetAndGet(t *testing.T) {
	c := NewTTLCache[string](1*time.Second, 0, 10)
	defer c.Stop()

	c.Set("key", "value")

	if c.Count() != 1 {
		t.Fatalf("expected count 1, got %d", c.Count())
	}

	v, ok := c.Get("key")
	if !ok {
		t.Fatalf("expected to find key")
	}
	if v != "value" {
		t.Errorf("expected value 'value', got %v", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected missing key to be absent")
	}
}

func TestTTLCacheExpiration(t *testing.T) {
	c := NewTTLCache[string](50*time.Millisecond, 10*time.Millisecond, 10)
	defer c.Stop()

	c.Set("temp", "data")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("temp"); ok {
		t.Errorf("expected item to expire")
	}
	if c.Count() != 0 {
		t.Errorf("expected cache to be empty after expiration, got %d", c.Count())
	}
}

func TestTTLCacheNoExpiration(t *testing.T) {
	c := NewTTLCache[int](0, 0, 0)
	defer c.Stop()

	c.Set("forever", 1)
	time.Sleep(10 * time.Millisecond)

	if v, ok := c.Get("forever"); !ok || v != 1 {
		t.Errorf("expected item without TTL to stay, got %v %v", v, ok)
	}
}

func TestTTLCacheEviction(t *testing.T) {
	c := NewTTLCache[int](1*time.Second, 0, 2)
	defer c.Stop()

	var evicted []string
	c.OnEvict = func(key string) { evicted = append(evicted, key) }

	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3) // should evict "a"

	if c.Count() != 2 {
		t.Fatalf("expected count 2 after eviction, got %d", c.Count())
	}

	if _, ok := c.Get("a"); ok {
		t.Errorf("expected 'a' to be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Errorf("expected OnEvict for 'a', got %v", evicted)
	}

	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("expected to get 2 for 'b', got %v", v)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("expected to get 3 for 'c', got %v", v)
	}
}

func TestTTLCacheUpdate(t *testing.T) {
	c := NewTTLCache[int](time.Second, 0, 10)
	defer c.Stop()

	inc := func(current int, found bool) (int, bool) {
		return current + 1, true
	}

	if v, ok := c.Update("counter", inc); !ok || v != 1 {
		t.Fatalf("expected 1 after first update, got %v", v)
	}
	if v, ok := c.Update("counter", inc); !ok || v != 2 {
		t.Fatalf("expected 2 after second update, got %v", v)
	}

	v, ok := c.Update("counter", func(current int, found bool) (int, bool) {
		if !found {
			t.Error("expected counter to be found")
		}
		return 0, false
	})
	if ok || v != 2 {
		t.Errorf("rejected update should leave value 2, got %v", v)
	}
	if got, _ := c.Get("counter"); got != 2 {
		t.Errorf("expected stored value 2, got %v", got)
	}
}

func TestTTLCacheUpdateExpired(t *testing.T) {
	c := NewTTLCache[int](20*time.Millisecond, 0, 10)
	defer c.Stop()

	c.Set("k", 5)
	time.Sleep(40 * time.Millisecond)

	c.Update("k", func(current int, found bool) (int, bool) {
		if found || current != 0 {
			t.Errorf("expired entry should not be visible, got %v %v", current, found)
		}
		return current, false
	})
}

func TestTTLCacheConcurrentUpdate(t *testing.T) {
	c := NewTTLCache[int](time.Minute, 0, 0)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update("n", func(current int, found bool) (int, bool) {
				return current + 1, true
			})
		}()
	}
	wg.Wait()

	if v, _ := c.Get("n"); v != 100 {
		t.Errorf("expected 100 after concurrent updates, got %d", v)
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string](time.Minute, 0, 0)
	defer c.Stop()

	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if c.Count() != 1 {
		t.Errorf("expected 1 item after Delete, got %d", c.Count())
	}

	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still readable")
	}

	// Stop is idempotent.
	c.Stop()
}

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*TTL[string, int], *clock) {
	clk := &clock{t: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
	c := NewTTL[string, int](ttl)
	c.now = clk.now
	return c, clk
}

func TestTTL_SetGet(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get = %d, %v", v, ok)
	}
	clk.advance(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired early")
	}
	clk.advance(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry alive at its expiry")
	}
	if c.Len() != 0 {
		t.Error("expired entry not dropped on access")
	}
}

func TestTTL_SetRefreshesExpiry(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("a", 1)
	clk.advance(50 * time.Second)
	c.Set("a", 2)
	clk.advance(50 * time.Second)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get = %d, %v", v, ok)
	}
}

func TestTTL_Take(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("a", 1)
	if v, ok := c.Take("a"); !ok || v != 1 {
		t.Errorf("Take = %d, %v", v, ok)
	}
	if _, ok := c.Take("a"); ok {
		t.Error("Take returned a consumed entry")
	}
	c.Set("b", 2)
	clk.advance(time.Hour)
	if _, ok := c.Take("b"); ok {
		t.Error("Take returned an expired entry")
	}
	if c.Len() != 0 {
		t.Error("expired entry kept after Take")
	}
}

func TestTTL_TakeIf(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", 1)
	if _, ok := c.TakeIf("a", func(v int) bool { return v == 2 }); ok {
		t.Error("TakeIf returned a rejected value")
	}
	if c.Len() != 1 {
		t.Fatal("rejected value was removed")
	}

	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TakeIf("a", func(v int) bool { return v == 1 }); ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	if won.Load() != 1 {
		t.Errorf("%d callers took the same value", won.Load())
	}
}

func TestTTL_SweepAndRange(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	c.Set("old", 1)
	clk.advance(30 * time.Second)
	c.Set("new", 2)
	clk.advance(40 * time.Second)

	var seen []string
	c.Range(func(k string, _ int) bool {
		seen = append(seen, k)
		return true
	})
	if len(seen) != 1 || seen[0] != "new" {
		t.Errorf("Range saw %v", seen)
	}
	if n := c.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestTTL_Janitor(t *testing.T) {
	c := NewTTL[string, int](time.Millisecond)
	c.Set("a", 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.Janitor(5*time.Millisecond, stop)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(stop)
	<-done
	if c.Len() != 0 {
		t.Error("janitor did not sweep")
	}
}

func TestTTL_Concurrent(t *testing.T) {
	c := NewTTL[int, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(i*100+j, j)
				c.Get(i*100 + j)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 800 {
		t.Errorf("Len = %d, want 800", c.Len())
	}
}

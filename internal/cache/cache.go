// Package cache provides a generic in-memory map whose entries expire.
package cache

import (
	"sync"
	"time"
)

type entry[vT any] struct {
	val     vT
	expires time.Time
}

// TTL is a thread-safe generic map whose entries expire a fixed duration
// after they were set. Expired entries are invisible to readers and are
// dropped by Sweep or on access.
type TTL[kT comparable, vT any] struct {
	kv  map[kT]entry[vT]
	ttl time.Duration
	mu  sync.RWMutex
	// now is replaced in tests.
	now func() time.Time
}

// NewTTL creates an empty cache whose entries live for ttl.
func NewTTL[kT comparable, vT any](ttl time.Duration) *TTL[kT, vT] {
	return &TTL[kT, vT]{
		kv:  make(map[kT]entry[vT]),
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the lifetime of new entries.
func (c *TTL[kT, vT]) TTL() time.Duration {
	return c.ttl
}

// Set stores val under key, replacing any previous entry and its expiry.
func (c *TTL[kT, vT]) Set(key kT, val vT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = entry[vT]{val: val, expires: c.now().Add(c.ttl)}
}

// Get returns the live value stored under key.
func (c *TTL[kT, vT]) Get(key kT) (val vT, ok bool) {
	c.mu.RLock()
	e, ok := c.kv[key]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if !c.now().Before(e.expires) {
		c.Delete(key)
		return val, false
	}
	return e.val, true
}

// Take returns and removes the live value stored under key.
func (c *TTL[kT, vT]) Take(key kT) (val vT, ok bool) {
	return c.TakeIf(key, nil)
}

// TakeIf removes the live value stored under key and returns it when match
// accepts it. A rejected value stays in place. At most one of several
// concurrent callers gets a given value.
func (c *TTL[kT, vT]) TakeIf(key kT, match func(vT) bool) (val vT, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.kv[key]
	if !ok {
		return
	}
	if !c.now().Before(e.expires) {
		delete(c.kv, key)
		return val, false
	}
	if match != nil && !match(e.val) {
		return val, false
	}
	delete(c.kv, key)
	return e.val, true
}

// Delete removes a key from the cache.
// If the key does not exist, this is a no-op.
func (c *TTL[kT, vT]) Delete(key kT) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.kv, key)
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[kT, vT]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kv)
}

// Sweep drops every expired entry and returns how many were removed.
func (c *TTL[kT, vT]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.kv {
		if !now.Before(e.expires) {
			delete(c.kv, k)
			n++
		}
	}
	return n
}

// Range iterates over live entries with read lock protection.
// If f returns false, iteration stops early. f must not modify the cache.
func (c *TTL[kT, vT]) Range(f func(key kT, val vT) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	for k, e := range c.kv {
		if !now.Before(e.expires) {
			continue
		}
		if !f(k, e.val) {
			return
		}
	}
}

// Janitor sweeps the cache every interval until stop is closed.
func (c *TTL[kT, vT]) Janitor(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}

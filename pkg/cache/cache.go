// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a generic capacity- and time-bounded cache.
//
// # Description
//
// Cache[K, V] bounds memory two ways: a hard capacity with FIFO eviction
// (oldest-inserted entry goes first, deliberately NOT last-access order),
// and a TTL evaluated lazily at read time. There is no background sweep
// goroutine; an expired entry is dropped the first time Get sees it.
//
// Callers that want recency semantics must re-insert on every use. The
// service clients here do not: a scan verdict's freshness depends on when
// it was produced, not on when it was last read.
//
// # Fill Deduplication
//
// GetOrFill shares one in-flight fill per key across concurrent callers
// via singleflight, so a cache miss cannot race a duplicate upstream
// call against itself. The in-flight call is the de-facto lock for that
// key.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is one cached value plus its insertion timestamp.
// Entries are replaced or evicted, never mutated in place.
type entry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// Cache is a bounded FIFO cache with lazy TTL expiry.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*list.Element
	order    *list.List // front = oldest inserted
	capacity int
	ttl      time.Duration
	flight   singleflight.Group
	keyFn    func(K) string

	// now is swappable for tests.
	now func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

// New creates a Cache with the given capacity and TTL.
//
// capacity must be >= 1 and ttl must be > 0; out-of-range values fall
// back to a capacity of 1 and a TTL of one minute so a misconfigured
// cache degrades to "barely caches" rather than "caches forever".
//
// keyFn renders a key for singleflight grouping. Pass nil for string
// keys; any other key type requires an explicit renderer.
func New[K comparable, V any](capacity int, ttl time.Duration, keyFn func(K) string) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if keyFn == nil {
		keyFn = func(k K) string {
			if s, ok := any(k).(string); ok {
				return s
			}
			return ""
		}
	}
	return &Cache[K, V]{
		entries:  make(map[K]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
		keyFn:    keyFn,
		now:      time.Now,
	}
}

// Get returns the live value for key. The second return is false when
// the key is absent or its entry has outlived the TTL; expired entries
// are removed on the spot.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	ent := elem.Value.(*entry[K, V])
	if c.now().Sub(ent.storedAt) > c.ttl {
		c.order.Remove(elem)
		delete(c.entries, key)
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	atomic.AddInt64(&c.hits, 1)
	return ent.value, true
}

// Set inserts or replaces the value for key. A replace keeps the key's
// original position out of the eviction order question by re-inserting
// it at the back: the entry is new, so it is the newest. When the insert
// would exceed capacity, the single oldest-inserted entry is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			old := oldest.Value.(*entry[K, V])
			c.order.Remove(oldest)
			delete(c.entries, old.key)
			atomic.AddInt64(&c.evictions, 1)
		}
	}
	c.entries[key] = c.order.PushBack(&entry[K, V]{
		key:      key,
		value:    value,
		storedAt: c.now(),
	})
}

// GetOrFill returns the cached value for key or, on a miss, calls fill
// exactly once even under concurrent misses for the same key. A
// successful fill is stored before being returned; a failed fill stores
// nothing and every waiting caller gets the same error.
func (c *Cache[K, V]) GetOrFill(ctx context.Context, key K, fill func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.flight.Do(c.keyFn(key), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// filled between our miss and winning the flight slot.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Clear empties the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been read.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports lifetime hit/miss/eviction counts.
func (c *Cache[K, V]) Stats() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), atomic.LoadInt64(&c.evictions)
}

// SetClock replaces the cache's time source. Test hook.
func (c *Cache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

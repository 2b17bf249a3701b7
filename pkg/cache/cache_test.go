// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestCache_RoundTrip tests that a value set is immediately readable.
func TestCache_RoundTrip(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)
	c.Set("a", 1)

	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get after Set = (%d, %v), want (1, true)", got, ok)
	}
}

// TestCache_MissReturnsFalse tests that an absent key is a miss.
func TestCache_MissReturnsFalse(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)

	if _, ok := c.Get("nope"); ok {
		t.Error("Get on empty cache should miss")
	}
}

// TestCache_LazyExpiry tests that an entry older than the TTL is dropped
// at read time.
func TestCache_LazyExpiry(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)

	base := time.Now()
	c.SetClock(func() time.Time { return base })
	c.Set("a", 1)

	// Just inside the TTL: still live.
	c.SetClock(func() time.Time { return base.Add(time.Minute) })
	if _, ok := c.Get("a"); !ok {
		t.Error("entry at exactly ttl age should still be live")
	}

	// Past the TTL: gone, and removed from the map.
	c.SetClock(func() time.Time { return base.Add(time.Minute + time.Millisecond) })
	if _, ok := c.Get("a"); ok {
		t.Error("entry past ttl should be expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, Len = %d", c.Len())
	}
}

// TestCache_FIFOEviction tests that inserting capacity+1 distinct keys
// evicts exactly the first inserted key.
func TestCache_FIFOEviction(t *testing.T) {
	c := New[string, int](3, time.Minute, nil)
	c.Set("first", 1)
	c.Set("second", 2)
	c.Set("third", 3)
	c.Set("fourth", 4)

	if c.Len() != 3 {
		t.Fatalf("Len after capacity+1 inserts = %d, want 3", c.Len())
	}
	if _, ok := c.Get("first"); ok {
		t.Error("oldest-inserted key should have been evicted")
	}
	for _, k := range []string{"second", "third", "fourth"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("key %q should have survived eviction", k)
		}
	}
}

// TestCache_FIFONotLRU tests that reading a key does not save it from
// eviction. Insertion order decides, not access order.
func TestCache_FIFONotLRU(t *testing.T) {
	c := New[string, int](2, time.Minute, nil)
	c.Set("old", 1)
	c.Set("new", 2)

	// Touch "old" repeatedly; under LRU this would protect it.
	for i := 0; i < 5; i++ {
		c.Get("old")
	}
	c.Set("newest", 3)

	if _, ok := c.Get("old"); ok {
		t.Error("reads must not protect a key from FIFO eviction")
	}
}

// TestCache_SetReplacesInPlace tests that no two entries for the same
// key coexist and that a replace refreshes the stored timestamp.
func TestCache_SetReplacesInPlace(t *testing.T) {
	c := New[string, int](2, time.Minute, nil)
	c.Set("a", 1)
	c.Set("a", 2)

	if c.Len() != 1 {
		t.Fatalf("replace should not grow the cache, Len = %d", c.Len())
	}
	got, _ := c.Get("a")
	if got != 2 {
		t.Errorf("Get = %d, want replaced value 2", got)
	}
}

// TestCache_Clear tests that Clear empties everything.
func TestCache_Clear(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Get after Clear should miss")
	}
}

// TestCache_GetOrFill_SharesInFlightCall tests that N concurrent misses
// for one key produce exactly one fill call.
func TestCache_GetOrFill_SharesInFlightCall(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)

	var fills int32
	release := make(chan struct{})
	fill := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&fills, 1)
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFill(context.Background(), "key", fill)
			if err != nil {
				t.Errorf("GetOrFill: %v", err)
			}
			results[i] = v
		}(i)
	}
	// Let every goroutine reach the flight before releasing the fill.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&fills); got != 1 {
		t.Errorf("fill calls = %d, want 1", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("caller %d got %d, want 42", i, v)
		}
	}
}

// TestCache_GetOrFill_ErrorNotCached tests that a failed fill stores
// nothing, so the next call retries.
func TestCache_GetOrFill_ErrorNotCached(t *testing.T) {
	c := New[string, int](4, time.Minute, nil)

	boom := errors.New("upstream down")
	calls := 0
	_, err := c.GetOrFill(context.Background(), "k", func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped upstream error", err)
	}

	v, err := c.GetOrFill(context.Background(), "k", func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil || v != 7 {
		t.Fatalf("retry after failed fill = (%d, %v), want (7, nil)", v, err)
	}
	if calls != 2 {
		t.Errorf("fill calls = %d, want 2", calls)
	}
}

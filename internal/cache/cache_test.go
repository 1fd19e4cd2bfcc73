// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New[string](ttl, WithClock(clock.Now), WithCleanupInterval(0)), clock
}

func TestCacheGetSet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, want 1, true", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should miss")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Keys != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 1 key", s)
	}
	if got := s.HitRate(); got != 50 {
		t.Errorf("HitRate() = %v, want 50", got)
	}
}

func TestCacheExpiration(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("a", "1")
	c.SetWithTTL("long", "2", time.Hour)

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should expire exactly at its TTL")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("long-lived entry expired with the default TTL")
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCacheCleanup(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.SetWithTTL("c", "3", time.Hour)

	clock.Advance(2 * time.Minute)
	if removed := c.Cleanup(); removed != 2 {
		t.Errorf("Cleanup() = %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.Delete("c")
	c.Delete("missing")
	if c.Len() != 0 {
		t.Errorf("Len() after Delete = %d, want 0", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := GenerateKey("k", j%10)
				c.Set(key, i)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}

func TestGenerateKey(t *testing.T) {
	type params struct {
		Lat, Lon float64
		Date     string
	}
	a := GenerateKey("weather", params{1, 2, "2026-06-01"})
	b := GenerateKey("weather", params{1, 2, "2026-06-01"})
	c := GenerateKey("weather", params{1, 2, "2026-06-02"})
	d := GenerateKey("events", params{1, 2, "2026-06-01"})
	if a != b {
		t.Errorf("identical params produced %q and %q", a, b)
	}
	if a == c || a == d {
		t.Error("different params or methods should produce different keys")
	}
}

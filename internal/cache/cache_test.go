package cache

import (
	"testing"
	"time"
)

func testCache(t *testing.T, opts Options) *Cache[string] {
	t.Helper()
	c := New[string](opts)
	t.Cleanup(c.Stop)
	return c
}

func TestSetGet(t *testing.T) {
	c := testCache(t, Options{})

	if !c.Set("greeting", "hello") {
		t.Fatal("Set returned false for valid key")
	}

	v, ok := c.Get("greeting")
	if !ok || v != "hello" {
		t.Errorf("Get(greeting) = %q, %v; want hello, true", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) reported a hit")
	}
}

func TestEmptyKeyIsRejected(t *testing.T) {
	c := testCache(t, Options{})

	if c.Set("", "value") {
		t.Error("Set accepted an empty key")
	}
	if _, ok := c.Get(""); ok {
		t.Error("Get returned a value for an empty key")
	}
	if c.Remove("") {
		t.Error("Remove reported success for an empty key")
	}
}

func TestExpiryWithoutSweep(t *testing.T) {
	// Long sweep interval so only lazy eviction can apply
	c := testCache(t, Options{SweepInterval: time.Hour})

	c.SetTTL("short", "lived", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("Get returned an expired entry")
	}
	if c.Has("short") {
		t.Error("Has reported an expired entry as live")
	}
}

func TestExpiredEntryRetainedUntilCleanup(t *testing.T) {
	c := testCache(t, Options{SweepInterval: time.Hour})

	c.SetTTL("short", "lived", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// Reads must not destroy the expired entry: GetStale depends on it.
	c.Get("short")
	c.Has("short")
	if c.Size() != 1 {
		t.Fatalf("Size() = %d after reads, want 1", c.Size())
	}
	if v, ok := c.GetStale("short"); !ok || v != "lived" {
		t.Errorf("GetStale(short) = %q, %v after Get; want the stale value", v, ok)
	}

	if removed := c.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after cleanup, want 0", c.Size())
	}
}

func TestCapacityEvictsOldestByCreation(t *testing.T) {
	c := testCache(t, Options{MaxEntries: 3, SweepInterval: time.Hour})

	c.Set("first", "1")
	time.Sleep(2 * time.Millisecond)
	c.Set("second", "2")
	time.Sleep(2 * time.Millisecond)
	c.Set("third", "3")
	time.Sleep(2 * time.Millisecond)
	c.Set("fourth", "4")

	if _, ok := c.Get("first"); ok {
		t.Error("oldest entry survived eviction at capacity")
	}
	for _, key := range []string{"second", "third", "fourth"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q was evicted, want it kept", key)
		}
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := testCache(t, Options{MaxEntries: 2, SweepInterval: time.Hour})

	c.Set("a", "1")
	time.Sleep(2 * time.Millisecond)
	c.Set("b", "2")
	c.Set("a", "updated")

	if c.Size() != 2 {
		t.Errorf("Size() = %d after overwrite at capacity, want 2", c.Size())
	}
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("Get(a) = %q, want updated", v)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("overwrite of existing key evicted another entry")
	}
}

func TestCleanup(t *testing.T) {
	c := testCache(t, Options{SweepInterval: time.Hour})

	c.SetTTL("gone1", "x", 5*time.Millisecond)
	c.SetTTL("gone2", "y", 5*time.Millisecond)
	c.SetTTL("kept", "z", time.Hour)
	time.Sleep(20 * time.Millisecond)

	if removed := c.Cleanup(); removed != 2 {
		t.Errorf("Cleanup() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d after cleanup, want 1", c.Size())
	}
}

func TestRemoveAndClear(t *testing.T) {
	c := testCache(t, Options{})

	c.Set("a", "1")
	c.Set("b", "2")

	if !c.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size() = %d after Clear, want 0", c.Size())
	}
}

func TestBatchOperations(t *testing.T) {
	c := testCache(t, Options{})

	stored := c.SetMany(map[string]string{"a": "1", "b": "2", "": "skipped"})
	if stored != 2 {
		t.Errorf("SetMany stored %d, want 2", stored)
	}

	got := c.GetMany([]string{"a", "b", "missing"})
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Errorf("GetMany = %v, want a=1 b=2", got)
	}

	if c.SetMany(nil) != 0 {
		t.Error("SetMany(nil) stored entries")
	}
}

func TestStats(t *testing.T) {
	c := testCache(t, Options{MaxEntries: 10, DefaultTTL: time.Hour, SweepInterval: time.Hour})

	c.Set("live", "value")
	c.SetTTL("dead", "value", 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	s := c.Stats()
	if s.Entries != 1 {
		t.Errorf("Stats.Entries = %d, want 1", s.Entries)
	}
	if s.Expired != 1 {
		t.Errorf("Stats.Expired = %d, want 1", s.Expired)
	}
	if s.ApproxBytes == 0 {
		t.Error("Stats.ApproxBytes = 0, want > 0")
	}
	if s.MaxEntries != 10 || s.DefaultTTL != time.Hour {
		t.Errorf("Stats limits = %d/%v, want 10/1h", s.MaxEntries, s.DefaultTTL)
	}
}

func TestGetStale(t *testing.T) {
	c := testCache(t, Options{SweepInterval: time.Hour})

	c.SetTTL("old", "but usable", 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("old"); ok {
		t.Fatal("Get returned an expired entry")
	}
	v, ok := c.GetStale("old")
	if !ok || v != "but usable" {
		t.Errorf("GetStale(old) = %q, %v; want stale value", v, ok)
	}
}

func TestBackgroundSweep(t *testing.T) {
	c := testCache(t, Options{SweepInterval: 15 * time.Millisecond})

	c.SetTTL("soon", "gone", 5*time.Millisecond)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Size() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("background sweep never removed the expired entry")
}

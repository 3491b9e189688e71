package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestInsertThenLookupHit(t *testing.T) {
	c := New(16, time.Minute)
	now := time.Now()

	body := []byte("hello wire bytes")
	if reason := c.Insert("/a.html", VaryNone, "etag-1", body, now); reason != SkipNone {
		t.Fatalf("Insert: got skip reason %v", reason)
	}

	e, ok := c.Lookup("/a.html", VaryNone, now)
	if !ok {
		t.Fatal("Lookup: expected hit")
	}
	if !bytes.Equal(e.Bytes, body) {
		t.Fatalf("Lookup returned different bytes")
	}
	if e.ETag != "etag-1" {
		t.Fatalf("ETag = %q, want etag-1", e.ETag)
	}
}

func TestLookupMissDistinctVary(t *testing.T) {
	c := New(16, time.Minute)
	now := time.Now()
	c.Insert("/a.html", VaryGzip, "e", []byte("x"), now)

	if _, ok := c.Lookup("/a.html", VaryNone, now); ok {
		t.Fatal("Lookup with different vary key should miss")
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c := New(16, 10*time.Second)
	now := time.Now()
	c.Insert("/a.html", VaryNone, "e", []byte("x"), now)

	if _, ok := c.Lookup("/a.html", VaryNone, now.Add(20*time.Second)); ok {
		t.Fatal("Lookup after TTL should miss")
	}
}

func TestInsertTooLargeSkipped(t *testing.T) {
	c := New(4, time.Minute)
	now := time.Now()
	big := make([]byte, PerEntryCap+1)
	if reason := c.Insert("/big", VaryNone, "e", big, now); reason != SkipTooLarge {
		t.Fatalf("Insert(oversized): got %v, want SkipTooLarge", reason)
	}
	if _, ok := c.Lookup("/big", VaryNone, now); ok {
		t.Fatal("oversized entry should never be stored")
	}
}

func TestCollisionDisplacesOccupant(t *testing.T) {
	// A single-slot cache forces every insert into slot 0, so round-robin
	// collision placement degenerates to direct overwrite: the second
	// distinct key always evicts the first.
	c := New(1, time.Minute)
	now := time.Now()
	c.Insert("/a.html", VaryNone, "e1", []byte("a"), now)
	c.Insert("/b.html", VaryNone, "e2", []byte("b"), now)

	if _, ok := c.Lookup("/a.html", VaryNone, now); ok {
		t.Fatal("/a.html should have been displaced")
	}
	if _, ok := c.Lookup("/b.html", VaryNone, now); !ok {
		t.Fatal("/b.html should be present")
	}
	if c.Snapshot().Evictions != 1 {
		t.Fatalf("Evictions = %d, want 1", c.Snapshot().Evictions)
	}
}

func TestCollisionUsesRoundRobinCursorNotPrimarySlot(t *testing.T) {
	// "/one.html" and "/two.html" share a primary slot (index 1 of 4) but
	// neither hashes to slot 0, where the write cursor starts. On
	// collision the second insert must land at the cursor slot, leaving
	// the first insert's primary slot untouched, and must still be
	// reachable afterward only through Lookup's linear-sweep fallback.
	c := New(4, time.Minute)
	now := time.Now()

	c.Insert("/one.html", VaryNone, "e1", []byte("a"), now)
	c.Insert("/two.html", VaryNone, "e2", []byte("b"), now)

	if _, ok := c.Lookup("/one.html", VaryNone, now); !ok {
		t.Fatal("/one.html should remain at its primary slot")
	}
	if _, ok := c.Lookup("/two.html", VaryNone, now); !ok {
		t.Fatal("/two.html should be reachable via the linear-sweep fallback")
	}
	if c.Snapshot().Evictions != 0 {
		t.Fatalf("Evictions = %d, want 0 (cursor slot was empty)", c.Snapshot().Evictions)
	}
}

func TestSnapshotTracksHitsAndMisses(t *testing.T) {
	c := New(16, time.Minute)
	now := time.Now()
	c.Insert("/a.html", VaryNone, "e", []byte("x"), now)

	c.Lookup("/a.html", VaryNone, now)
	c.Lookup("/missing.html", VaryNone, now)

	s := c.Snapshot()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("Snapshot = %+v, want Hits=1 Misses=1", s)
	}
}

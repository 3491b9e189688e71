// Package cache implements the path+vary-keyed table of pre-assembled
// response bytes described by the response cache component: fixed slot
// count, round-robin collision displacement, lazy TTL purge, and a
// global memory ceiling alongside a per-entry size cap.
package cache

import (
	"sync"
	"time"
)

// VaryKey is the reduced Accept-Encoding enumeration a cache entry is keyed on.
type VaryKey int

const (
	VaryNone VaryKey = iota
	VaryGzip
	VaryDeflate
)

const (
	PerEntryCap = 5 << 20   // 5 MiB
	GlobalCap   = 100 << 20 // 100 MiB
	purgeEvery  = 300 * time.Second
)

// SkipReason explains why Insert declined to store an entry.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipTooLarge
	SkipOverGlobalCap
)

// Entry is a pre-assembled, ready-to-send response blob.
type Entry struct {
	Path       string
	Vary       VaryKey
	ETag       string
	Bytes      []byte
	InsertedAt time.Time
}

func (e *Entry) size() int64 { return int64(len(e.Bytes)) }

type slotEntry struct {
	entry    *Entry
	occupied bool
}

// Cache is a fixed-slot-count table serialized behind a single mutex.
type Cache struct {
	ttl       time.Duration
	mu        sync.Mutex
	slots     []slotEntry
	cursor    int // round-robin write cursor for collisions
	bytesUsed int64
	peakBytes int64
	lastPurge time.Time

	Stats Stats
}

// Stats exposes hit/miss/eviction counters for instrumentation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New builds a cache with slotCount slots and the given entry TTL.
func New(slotCount int, ttl time.Duration) *Cache {
	return &Cache{
		ttl:       ttl,
		slots:     make([]slotEntry, slotCount),
		lastPurge: time.Now(),
	}
}

func hashKey(path string, vary VaryKey) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(path); i++ {
		h = h*33 + uint64(path[i])
	}
	return h*33 + uint64(vary)
}

// Lookup returns the entry for (path, vary) if present and unexpired.
// It probes the primary hash slot first, then falls back to a linear
// sweep for entries displaced by a later collision — the cache has no
// secondary index, by design, to keep memory bounded.
func (c *Cache) Lookup(path string, vary VaryKey, now time.Time) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybePurge(now)

	n := len(c.slots)
	idx := int(hashKey(path, vary) % uint64(n))

	if e := c.matchSlot(idx, path, vary, now); e != nil {
		c.Stats.Hits++
		return e, true
	}

	for i := 0; i < n; i++ {
		if i == idx {
			continue
		}
		if e := c.matchSlot(i, path, vary, now); e != nil {
			c.Stats.Hits++
			return e, true
		}
	}

	c.Stats.Misses++
	return nil, false
}

func (c *Cache) matchSlot(idx int, path string, vary VaryKey, now time.Time) *Entry {
	s := &c.slots[idx]
	if !s.occupied {
		return nil
	}
	e := s.entry
	if e.Path != path || e.Vary != vary {
		return nil
	}
	if now.Sub(e.InsertedAt) >= c.ttl {
		return nil
	}
	return e
}

// Insert stores a pre-assembled response. A free or matching primary
// slot is reused directly; a primary slot held by a different key is
// left alone and the entry is placed at the round-robin write cursor
// instead, displacing whatever that slot holds.
func (c *Cache) Insert(path string, vary VaryKey, etag string, body []byte, now time.Time) SkipReason {
	if int64(len(body)) > PerEntryCap {
		return SkipTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybePurge(now)

	size := int64(len(body))
	if c.bytesUsed+size > GlobalCap {
		c.purgeExpiredLocked(now)
		if c.bytesUsed+size > GlobalCap {
			return SkipOverGlobalCap
		}
	}

	idx := int(hashKey(path, vary) % uint64(len(c.slots)))
	s := &c.slots[idx]
	if s.occupied && (s.entry.Path != path || s.entry.Vary != vary) {
		s = &c.slots[c.cursor]
		c.cursor = (c.cursor + 1) % len(c.slots)
	}
	if s.occupied {
		c.bytesUsed -= s.entry.size()
		c.Stats.Evictions++
	}

	entry := &Entry{
		Path:       path,
		Vary:       vary,
		ETag:       etag,
		Bytes:      body,
		InsertedAt: now,
	}
	*s = slotEntry{entry: entry, occupied: true}
	c.bytesUsed += size
	if c.bytesUsed > c.peakBytes {
		c.peakBytes = c.bytesUsed
	}

	return SkipNone
}

func (c *Cache) maybePurge(now time.Time) {
	if now.Sub(c.lastPurge) < purgeEvery {
		return
	}
	c.purgeExpiredLocked(now)
}

// PurgeExpired removes entries older than the configured TTL.
func (c *Cache) PurgeExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpiredLocked(now)
}

func (c *Cache) purgeExpiredLocked(now time.Time) {
	c.lastPurge = now
	for i := range c.slots {
		s := &c.slots[i]
		if !s.occupied {
			continue
		}
		if now.Sub(s.entry.InsertedAt) >= c.ttl {
			c.bytesUsed -= s.entry.size()
			c.Stats.Evictions++
			*s = slotEntry{}
		}
	}
}

// CacheStats is the external snapshot returned by Stats().
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	BytesUsed int64
	PeakBytes int64
}

// Snapshot returns a point-in-time copy of the cache's counters.
func (c *Cache) Snapshot() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.Stats.Hits,
		Misses:    c.Stats.Misses,
		Evictions: c.Stats.Evictions,
		BytesUsed: c.bytesUsed,
		PeakBytes: c.peakBytes,
	}
}

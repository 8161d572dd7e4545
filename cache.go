package colidx

import (
	"github.com/colidx/colidx/heap"
	"github.com/colidx/colidx/ion"
	"github.com/dchest/siphash"
)

// sliceSpan is one (slice_idx, start, length) triple of a cached
// search result, per spec.md §4.7.
type sliceSpan struct {
	Slice  int
	Start  int
	Length int
}

// cacheKeyK0/K1 are fixed siphash keys; the cache key only needs to
// be a stable, well-distributed hash of (lo,hi), not a secret, so
// unlike tenant.go's keyed digest of an object path (the style this
// is grounded on) there is no need to randomize them per process.
const (
	cacheKeyK0 = 0x636f6c696478206b
	cacheKeyK1 = 0x6c696d626f756e64
)

// CacheKey hashes a (lo,hi) query range down to the fixed-width slot
// key LimBoundsCache is keyed by.
func CacheKey[T any](ops Ops[T], lo, hi T) uint64 {
	var buf ion.Buffer
	ops.Encode(&buf, lo)
	ops.Encode(&buf, hi)
	return siphash.Hash(cacheKeyK0, cacheKeyK1, buf.Bytes())
}

type cacheEntry struct {
	spans []sliceSpan
	size  int
	last  uint64
}

type evictTicket struct {
	key uint64
	seq uint64
}

func ticketLess(a, b evictTicket) bool { return a.seq < b.seq }

// LimBoundsCache is spec.md §4.7: a bounded (lo,hi) -> per-slice span
// cache. Eviction uses a lazy-deletion min-heap of "last touched"
// tickets (heap/heap.go's generic slice heap, which has no decrease-
// key operation): touching an entry pushes a fresh ticket instead of
// reordering its old one, and eviction pops tickets until it finds
// one still matching its entry's current last-use stamp, discarding
// every stale ticket it pops along the way.
type LimBoundsCache struct {
	maxSlots int
	maxBytes int

	bytes   int
	seq     uint64
	entries map[uint64]*cacheEntry
	tickets []evictTicket

	Hits, Misses, Evictions int64
}

// NewLimBoundsCache returns an empty cache bounded by slot count and
// total approximate byte size.
func NewLimBoundsCache(maxSlots, maxBytes int) *LimBoundsCache {
	return &LimBoundsCache{
		maxSlots: maxSlots,
		maxBytes: maxBytes,
		entries:  make(map[uint64]*cacheEntry),
	}
}

// approxSize is spec.md §4.7's "16*k + 1" approximate byte size of a
// cached result with k non-zero-length triples.
func approxSize(k int) int { return 16*k + 1 }

// CouldEnableCache reports whether a result with k non-zero-length
// triples is small enough to be worth caching at all.
func (c *LimBoundsCache) CouldEnableCache(k int) bool {
	return approxSize(k) <= c.maxBytes
}

// Get returns the cached spans for key, bumping its recency.
func (c *LimBoundsCache) Get(key uint64) ([]sliceSpan, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.Misses++
		return nil, false
	}
	c.Hits++
	c.touch(key, e)
	return e.spans, true
}

// Set stores spans (already compressed to non-zero-length triples)
// under key, evicting older entries as needed to stay within budget.
func (c *LimBoundsCache) Set(key uint64, spans []sliceSpan) {
	size := approxSize(len(spans))
	if size > c.maxBytes {
		return
	}
	if old, ok := c.entries[key]; ok {
		c.bytes -= old.size
		delete(c.entries, key)
	}
	e := &cacheEntry{spans: spans, size: size}
	c.entries[key] = e
	c.bytes += size
	c.touch(key, e)
	c.evict()
}

func (c *LimBoundsCache) touch(key uint64, e *cacheEntry) {
	c.seq++
	e.last = c.seq
	heap.PushSlice(&c.tickets, evictTicket{key: key, seq: c.seq}, ticketLess)
}

func (c *LimBoundsCache) evict() {
	for (c.bytes > c.maxBytes || len(c.entries) > c.maxSlots) && len(c.tickets) > 0 {
		t := heap.PopSlice(&c.tickets, ticketLess)
		e, ok := c.entries[t.key]
		if !ok || e.last != t.seq {
			continue // stale ticket, superseded by a later touch
		}
		delete(c.entries, t.key)
		c.bytes -= e.size
		c.Evictions++
	}
}

// Invalidate clears the whole cache. Called on any append or
// optimize, per spec.md §4.7's dirtycache rule.
func (c *LimBoundsCache) Invalidate() {
	c.entries = make(map[uint64]*cacheEntry)
	c.tickets = c.tickets[:0]
	c.bytes = 0
}

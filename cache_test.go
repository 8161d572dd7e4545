package colidx

import "testing"

func TestCacheKeyDeterministic(t *testing.T) {
	ops := Int64Ops()
	k1 := CacheKey(ops, 1, 10)
	k2 := CacheKey(ops, 1, 10)
	if k1 != k2 {
		t.Fatalf("expected CacheKey to be deterministic, got %d vs %d", k1, k2)
	}
	if k3 := CacheKey(ops, 1, 11); k3 == k1 {
		t.Fatal("expected different ranges to hash differently (with overwhelming probability)")
	}
}

func TestLimBoundsCacheGetSetInvalidate(t *testing.T) {
	c := NewLimBoundsCache(10, 1<<20)
	key := CacheKey(Int64Ops(), 1, 10)

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if c.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", c.Misses)
	}

	spans := []sliceSpan{{Slice: 0, Start: 1, Length: 3}}
	c.Set(key, spans)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 1 || got[0] != spans[0] {
		t.Fatalf("unexpected cached spans: %v", got)
	}
	if c.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", c.Hits)
	}

	c.Invalidate()
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss after Invalidate")
	}
}

func TestLimBoundsCacheEvictsBySlotLimit(t *testing.T) {
	c := NewLimBoundsCache(2, 1<<20)
	ops := Int64Ops()
	for i := int64(0); i < 3; i++ {
		key := CacheKey(ops, i, i+1)
		c.Set(key, []sliceSpan{{Slice: 0, Start: 0, Length: 1}})
	}
	if len(c.entries) > 2 {
		t.Fatalf("expected at most 2 entries after exceeding maxSlots, got %d", len(c.entries))
	}
	if c.Evictions == 0 {
		t.Fatal("expected at least one eviction")
	}
}

func TestCouldEnableCache(t *testing.T) {
	c := NewLimBoundsCache(10, 100)
	if !c.CouldEnableCache(1) {
		t.Fatal("expected a small result to be cacheable")
	}
	if c.CouldEnableCache(1000) {
		t.Fatal("expected a huge result to exceed the byte budget")
	}
}

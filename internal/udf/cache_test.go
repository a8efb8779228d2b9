package udf

import "testing"

func TestBlockCacheMissThenHit(t *testing.T) {
	c := newBlockCache()
	if _, ok := c.lookup(5); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.insert(5, []byte("hello"))
	data, ok := c.lookup(5)
	if !ok {
		t.Fatalf("expected hit after insert")
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestBlockCacheInsertCopiesData(t *testing.T) {
	c := newBlockCache()
	src := []byte("original")
	c.insert(1, src)
	src[0] = 'X'
	data, _ := c.lookup(1)
	if string(data) != "original" {
		t.Fatalf("cache entry mutated by caller's slice: %q", data)
	}
}

func TestBlockCacheOverwritesOldestSlotOnceFull(t *testing.T) {
	c := newBlockCache()
	for i := 0; i < CacheSlots; i++ {
		c.insert(uint32(i), []byte{byte(i)})
	}
	// One more insert should evict block 0, the oldest slot.
	c.insert(uint32(CacheSlots), []byte{0xFF})

	if _, ok := c.lookup(0); ok {
		t.Fatalf("expected block 0 to have been evicted")
	}
	if data, ok := c.lookup(uint32(CacheSlots)); !ok || data[0] != 0xFF {
		t.Fatalf("expected the newly inserted block to be present")
	}
}

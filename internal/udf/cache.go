package udf

// blockCache is a fixed-capacity rolling cache of logical blocks, modeled on
// cache_has/cache_add in the reference implementation: a flat array of
// CacheSlots entries, a rolling search cursor that moves to the slot of the
// last hit so the next scan starts there (a miss leaves it unchanged), and a separate
// rolling insert cursor that overwrites the oldest slot once full. Both are
// struct fields here (they were a function-local `static int` and a
// `device->cache_index` respectively in the original); nothing about the
// replacement policy itself changes.
type blockCache struct {
	entries    [CacheSlots]cacheEntry
	searchFrom int
	insertAt   int
}

type cacheEntry struct {
	valid bool
	block uint32
	data  []byte
}

func newBlockCache() *blockCache {
	return &blockCache{}
}

// lookup scans up to CacheSlots entries starting from the rolling search
// cursor, wrapping around, and returns the cached block on a hit. A full
// sweep with no match leaves the cursor back where it started, exactly like
// the reference implementation's cache_has.
func (c *blockCache) lookup(block uint32) ([]byte, bool) {
	idx := c.searchFrom
	for range CacheSlots {
		e := &c.entries[idx]
		if e.valid && e.block == block {
			c.searchFrom = idx
			return e.data, true
		}
		idx++
		if idx >= CacheSlots {
			idx = 0
		}
	}
	return nil, false
}

// insert overwrites the slot the rolling insert cursor currently points to
// and advances it, matching cache_add's unconditional overwrite-oldest
// behavior (there is no LRU bookkeeping in the reference implementation).
func (c *blockCache) insert(block uint32, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.entries[c.insertAt] = cacheEntry{valid: true, block: block, data: cp}
	c.insertAt++
	if c.insertAt >= CacheSlots {
		c.insertAt = 0
	}
}

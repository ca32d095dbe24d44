package cobj

import "sync/atomic"

// CacheSize is the number of method cache slots in a compiled table. It must
// be a power of two.
const CacheSize = 256

// Ops is a class's compiled dispatch table.
//
// The table caches resolved method entries indexed by descriptor id masked
// against CacheSize. Slots are written without the registry lock: racing
// writers for the same class and descriptor always store the same entry, and
// each slot is a single atomic pointer, so a reader never sees a torn value.
// Colliding descriptors simply overwrite each other.
type Ops struct {
	cache  [CacheSize]atomic.Pointer[Method]
	cls    *Class
	stats  *opsStats
	static bool
}

// opsStats counts cache hits and misses for one table.
type opsStats struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Class returns the class this table belongs to.
func (ops *Ops) Class() *Class {
	return ops.cls
}

// Static reports whether the table was installed by CompileStatic.
func (ops *Ops) Static() bool {
	return ops.static
}

// reset fills every slot with the never-matching entry.
func (ops *Ops) reset() {
	for i := range ops.cache {
		ops.cache[i].Store(nullMethod)
	}
}

// lookup probes the cache slot for d and falls back to the resolver on a
// miss, storing the freshly resolved entry.
func (ops *Ops) lookup(d *Desc) *Method {
	slot := &ops.cache[d.id.Load()&(CacheSize-1)]
	if ce := slot.Load(); ce != nil && ce.Desc == d {
		if ops.stats != nil {
			ops.stats.hits.Add(1)
		}
		return ce
	}

	ce := Resolve(ops.cls, d)
	slot.Store(ce)
	if ops.stats != nil {
		ops.stats.misses.Add(1)
	}
	return ce
}

// counts returns the table's hit and miss totals.
func (ops *Ops) counts() (hits, misses uint64) {
	if ops.stats == nil {
		return 0, 0
	}
	return ops.stats.hits.Load(), ops.stats.misses.Load()
}

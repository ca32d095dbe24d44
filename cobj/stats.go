package cobj

// ClassStats describes one class bound to a registry.
type ClassStats struct {
	Name     string
	Refs     uint32 // live counted instances plus static pins
	Pinned   uint32 // static pins
	Compiled bool
	Static   bool   // compiled table provided by CompileStatic
	Hits     uint64 // cache hits on the current table
	Misses   uint64 // cache misses on the current table
}

// Stats holds aggregate dispatch cache statistics for a registry.
type Stats struct {
	Classes    []ClassStats // sorted by name
	LiveTables int          // compiled tables currently installed
	Hits       uint64       // including tables already freed
	Misses     uint64       // including tables already freed
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// Class returns the statistics for the named class.
func (s Stats) Class(name string) (ClassStats, bool) {
	for _, c := range s.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ClassStats{}, false
}

// Stats gathers cache statistics from every class bound to r. Hit and miss
// counts are only collected when the registry was created with
// Options.Stats.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Hits:   r.retiredHits,
		Misses: r.retiredMisses,
	}
	for _, cls := range r.sortedClassesLocked() {
		cs := ClassStats{
			Name:   cls.Name,
			Refs:   cls.refs,
			Pinned: cls.pinned,
		}
		if ops := cls.ops.Load(); ops != nil {
			cs.Compiled = true
			cs.Static = ops.static
			cs.Hits, cs.Misses = ops.counts()
			s.LiveTables++
		}
		s.Hits += cs.Hits
		s.Misses += cs.Misses
		s.Classes = append(s.Classes, cs)
	}
	return s
}

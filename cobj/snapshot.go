package cobj

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Snapshot is a point-in-time description of a registry, for diagnostics.
type Snapshot struct {
	ID          string          `cbor:"1,keyasint"`
	Taken       int64           `cbor:"2,keyasint"` // unix nanoseconds
	NextID      uint32          `cbor:"3,keyasint"`
	Classes     []ClassSnapshot `cbor:"4,keyasint,omitempty"`
	Descriptors []DescSnapshot  `cbor:"5,keyasint,omitempty"`
	Hits        uint64          `cbor:"6,keyasint"`
	Misses      uint64          `cbor:"7,keyasint"`
}

// ClassSnapshot describes one class.
type ClassSnapshot struct {
	Name     string   `cbor:"1,keyasint"`
	Size     uint64   `cbor:"2,keyasint"`
	Bases    []string `cbor:"3,keyasint,omitempty"`
	Methods  []string `cbor:"4,keyasint,omitempty"`
	Refs     uint32   `cbor:"5,keyasint"`
	Pinned   uint32   `cbor:"6,keyasint"`
	Compiled bool     `cbor:"7,keyasint"`
	Hits     uint64   `cbor:"8,keyasint"`
	Misses   uint64   `cbor:"9,keyasint"`
}

// DescSnapshot describes one operation descriptor with an assigned id.
type DescSnapshot struct {
	ID   uint32 `cbor:"1,keyasint"`
	Name string `cbor:"2,keyasint"`
}

// Snapshot captures the classes bound to r and the descriptors their
// method tables reference.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Snapshot{
		ID:     uuid.NewString(),
		Taken:  time.Now().UnixNano(),
		NextID: r.nextID,
		Hits:   r.retiredHits,
		Misses: r.retiredMisses,
	}

	seen := make(map[*Desc]bool)
	for _, cls := range r.sortedClassesLocked() {
		cs := ClassSnapshot{
			Name:   cls.Name,
			Size:   uint64(cls.Size),
			Refs:   cls.refs,
			Pinned: cls.pinned,
		}
		for _, b := range cls.Bases {
			cs.Bases = append(cs.Bases, b.Name)
		}
		for i := range cls.Methods {
			m := &cls.Methods[i]
			if m.isEnd() {
				break
			}
			cs.Methods = append(cs.Methods, m.Desc.name)
			if id := m.Desc.id.Load(); id != 0 && !seen[m.Desc] {
				seen[m.Desc] = true
				s.Descriptors = append(s.Descriptors, DescSnapshot{ID: id, Name: m.Desc.name})
			}
		}
		if ops := cls.ops.Load(); ops != nil {
			cs.Compiled = true
			cs.Hits, cs.Misses = ops.counts()
		}
		s.Hits += cs.Hits
		s.Misses += cs.Misses
		s.Classes = append(s.Classes, cs)
	}
	slices.SortFunc(s.Descriptors, func(a, b DescSnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return s
}

// cborEncMode uses canonical encoding so equal snapshots encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cobj: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cobj: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

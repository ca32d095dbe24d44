package cobj

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// Options configures a Registry.
type Options struct {
	// MaxTables caps the number of dynamically allocated compiled tables
	// alive at once. Compiling past the cap fails with ErrAllocation.
	// Zero means unlimited. Tables installed by CompileStatic are not counted.
	MaxTables int

	// Stats enables per-table cache hit and miss counters.
	Stats bool

	// Logger receives registry diagnostics. Defaults to the "cobj" logger.
	Logger commonlog.Logger
}

// Registry holds the metadata lock and all mutable class state.
//
// Lock discipline: mu guards nextID, the refs, pinned and ops fields of
// every class bound to this registry, the classes set, the retired counters
// and closed. Dispatch cache slots are not guarded by mu.
//
// A class binds to the first registry that compiles or initialises it and
// stays bound until that registry shuts down.
type Registry struct {
	mu      sync.Mutex
	nextID  uint32
	classes map[*Class]struct{}
	closed  bool

	retiredHits   uint64
	retiredMisses uint64

	tables atomic.Int64 // live dynamic tables, for MaxTables

	opts Options
	log  commonlog.Logger
}

// NewRegistry creates a registry. It is the runtime's explicit start-up
// step; pair it with Shutdown.
func NewRegistry(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = commonlog.GetLogger("cobj")
	}
	r := &Registry{
		nextID:  1, // 0 means "no id yet"
		classes: make(map[*Class]struct{}),
		opts:    opts,
		log:     log,
	}
	log.Infof("registry started (max tables %d, stats %t)", opts.MaxTables, opts.Stats)
	return r
}

// bind attaches cls to r. Must be called with r.mu held.
func (r *Registry) bind(cls *Class) error {
	if r.closed {
		return ErrClosed
	}
	if !cls.reg.CompareAndSwap(nil, r) && cls.reg.Load() != r {
		return fmt.Errorf("%w: %s", ErrForeignClass, cls.Name)
	}
	r.classes[cls] = struct{}{}
	return nil
}

// owns reports whether cls is currently bound to r.
func (r *Registry) owns(cls *Class) bool {
	return cls.reg.Load() == r
}

// Classes returns the classes bound to r, sorted by name.
func (r *Registry) Classes() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedClassesLocked()
}

func (r *Registry) sortedClassesLocked() []*Class {
	result := make([]*Class, 0, len(r.classes))
	for c := range r.classes {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b *Class) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// Refs returns the reference count of cls: its live counted instances plus
// any CompileStatic pins. Classes bound elsewhere report 0.
func (r *Registry) Refs(cls *Class) uint32 {
	if cls == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.owns(cls) {
		return 0
	}
	return cls.refs
}

// Closed reports whether Shutdown has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Shutdown frees every compiled table, including statically compiled ones,
// unbinds all classes and closes the registry. Every later operation except
// Delete returns ErrClosed. Instances still alive keep dispatching through
// the table they hold; deleting them only clears their header.
//
// If counted instances remain, Shutdown still completes and returns an
// error wrapping ErrBusy naming their classes. Calling Shutdown again is a
// no-op.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var busy []string
	var freed []*Ops
	for _, cls := range r.sortedClassesLocked() {
		if live := cls.refs - cls.pinned; live > 0 {
			busy = append(busy, fmt.Sprintf("%s (%d)", cls.Name, live))
		}
		if ops := cls.ops.Swap(nil); ops != nil {
			r.retireLocked(ops)
			freed = append(freed, ops)
		}
		cls.refs = 0
		cls.pinned = 0
		cls.reg.Store(nil)
	}
	clear(r.classes)
	r.mu.Unlock()

	for _, ops := range freed {
		r.release(ops)
	}

	if len(busy) > 0 {
		r.log.Warningf("registry shut down with live instances: %s", strings.Join(busy, ", "))
		return fmt.Errorf("%w: %s", ErrBusy, strings.Join(busy, ", "))
	}
	r.log.Infof("registry shut down (%d tables freed)", len(freed))
	return nil
}

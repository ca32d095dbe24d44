package cobj

import "fmt"

// allocOps allocates an uninitialised compiled table, charging it against
// MaxTables. Never called with r.mu held.
func (r *Registry) allocOps() (*Ops, error) {
	if limit := r.opts.MaxTables; limit > 0 {
		if n := r.tables.Add(1); n > int64(limit) {
			r.tables.Add(-1)
			return nil, fmt.Errorf("%w: compiled table limit %d reached", ErrAllocation, limit)
		}
	}
	return new(Ops), nil
}

// release returns a dynamic table's budget. Static tables were never charged.
func (r *Registry) release(ops *Ops) {
	if !ops.static && r.opts.MaxTables > 0 {
		r.tables.Add(-1)
	}
}

// retireLocked folds a detached table's counters into the registry totals.
// Must be called with r.mu held.
func (r *Registry) retireLocked(ops *Ops) {
	hits, misses := ops.counts()
	r.retiredHits += hits
	r.retiredMisses += misses
}

// compileLocked assigns ids to cls's descriptors, clears the cache of ops
// and installs it on cls. It does nothing and returns false if cls is
// already compiled. Must be called with r.mu held.
func (r *Registry) compileLocked(cls *Class, ops *Ops) bool {
	if cls.ops.Load() != nil {
		return false
	}

	for i := range cls.Methods {
		m := &cls.Methods[i]
		if m.isEnd() {
			break
		}
		m.Desc.assignID(&r.nextID)
	}

	ops.reset()
	ops.cls = cls
	if r.opts.Stats {
		ops.stats = &opsStats{}
	}
	cls.ops.Store(ops)
	return true
}

// Compile compiles cls's method table into a dispatch table. It is
// idempotent and safe under concurrent first use: the table is allocated
// without the lock, and if another caller installed one meanwhile the new
// table is discarded and Compile still succeeds.
func (r *Registry) Compile(cls *Class) error {
	if cls == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidArgument)
	}
	if r.owns(cls) && cls.ops.Load() != nil {
		return nil
	}
	if err := cls.validate(); err != nil {
		return err
	}

	ops, err := r.allocOps()
	if err != nil {
		r.log.Warningf("compile %s: %s", cls.Name, err)
		return err
	}

	r.mu.Lock()
	if err := r.bind(cls); err != nil {
		r.mu.Unlock()
		r.release(ops)
		return err
	}
	installed := r.compileLocked(cls, ops)
	r.mu.Unlock()

	if !installed {
		// Lost the race; someone else's table is in place.
		r.release(ops)
		r.log.Debugf("compile %s: already compiled, table discarded", cls.Name)
		return nil
	}
	r.log.Debugf("compiled class %s (%d methods)", cls.Name, cls.Methods.Len())
	return nil
}

// CompileStatic compiles cls into caller-provided storage and pins the
// class so its table is never freed by instance deletion. It is meant for
// classes used before normal start-up completes, together with InitStatic.
// If cls is already compiled the existing table stays and ops is unused;
// the pin is taken either way.
func (r *Registry) CompileStatic(cls *Class, ops *Ops) error {
	if cls == nil || ops == nil {
		return fmt.Errorf("%w: nil class or table", ErrInvalidArgument)
	}
	if err := cls.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if err := r.bind(cls); err != nil {
		r.mu.Unlock()
		return err
	}
	cls.refs++
	cls.pinned++
	if cls.ops.Load() == nil {
		ops.static = true
	}
	installed := r.compileLocked(cls, ops)
	r.mu.Unlock()

	if installed {
		r.log.Debugf("compiled class %s into static table", cls.Name)
	}
	return nil
}

// FreeTable frees cls's compiled table if it has no live instances and no
// static pins, returning the class to its uncompiled state. It is idempotent
// and a no-op while references remain.
func (r *Registry) FreeTable(cls *Class) error {
	if cls == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidArgument)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	switch owner := cls.reg.Load(); {
	case owner == nil:
		r.mu.Unlock()
		return nil
	case owner != r:
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrForeignClass, cls.Name)
	}
	var ops *Ops
	if cls.refs == 0 {
		ops = cls.ops.Swap(nil)
		if ops != nil {
			r.retireLocked(ops)
		}
	}
	r.mu.Unlock()

	if ops != nil {
		r.release(ops)
		r.log.Debugf("freed compiled table of class %s", cls.Name)
	}
	return nil
}

package cobj

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

// Object is the common instance header: a reference to the compiled table
// of the instance's class. Concrete instance types embed it by value as
// their first field and keep their own state after it.
//
// The table is shared by every instance of the class and owned by the
// class, not the instance.
type Object struct {
	ops atomic.Pointer[Ops]

	// Written under the lock of the registry whose class the header
	// points at.
	static bool
}

// HeaderSize is the size of the common instance header.
const HeaderSize = unsafe.Sizeof(Object{})

// Instance is implemented by *Object and by every type embedding Object.
type Instance interface {
	object() *Object
}

func (o *Object) object() *Object {
	return o
}

// Ops returns the instance's compiled table, or nil if it is not
// initialised.
func (o *Object) Ops() *Ops {
	return o.ops.Load()
}

// Class returns the instance's class, or nil if it is not initialised.
func (o *Object) Class() *Class {
	if ops := o.ops.Load(); ops != nil {
		return ops.cls
	}
	return nil
}

// header returns inst's Object, or nil for a nil interface or a nil pointer.
// Instance types embed Object by value, so a non-nil pointer always has a
// header.
func header(inst Instance) *Object {
	if inst == nil {
		return nil
	}
	if v := reflect.ValueOf(inst); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil
	}
	return inst.object()
}

// ClassOf returns the class of inst, or nil.
func ClassOf(inst Instance) *Class {
	if o := header(inst); o != nil {
		return o.Class()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Instance lifecycle
// ---------------------------------------------------------------------------

// Init initialises a pre-allocated instance as an instance of cls,
// compiling cls first if needed. The class's reference count is
// incremented. If inst is already an instance of another class, that
// reference is released once the new one is held; on error inst keeps its
// previous class.
func (r *Registry) Init(inst Instance, cls *Class) error {
	if cls == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidArgument)
	}
	o := header(inst)
	if o == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidArgument)
	}
	if r.Closed() {
		return ErrClosed
	}

	if cur := o.ops.Load(); cur != nil && cur.cls == cls && cls.ops.Load() == cur && r.owns(cls) {
		r.mu.Lock()
		counted := !o.static
		r.mu.Unlock()
		if counted {
			return nil
		}
	}

	for {
		r.mu.Lock()
		if err := r.bind(cls); err != nil {
			r.mu.Unlock()
			return err
		}
		if ops := cls.ops.Load(); ops != nil {
			prev, prevStatic := o.ops.Load(), o.static
			o.ops.Store(ops)
			o.static = false
			cls.refs++
			r.mu.Unlock()

			if prev != nil {
				dropRef(prev, prevStatic)
			}
			return nil
		}
		r.mu.Unlock()

		// Compile without the lock, then re-check.
		if err := r.Compile(cls); err != nil {
			return err
		}
	}
}

// InitStatic initialises inst as an uncounted instance of cls. cls must
// already be compiled, normally by CompileStatic; InitStatic never compiles
// and never retries. On error inst keeps its previous class.
func (r *Registry) InitStatic(inst Instance, cls *Class) error {
	if cls == nil {
		return fmt.Errorf("%w: nil class", ErrInvalidArgument)
	}
	o := header(inst)
	if o == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidArgument)
	}

	r.mu.Lock()
	if err := r.bind(cls); err != nil {
		r.mu.Unlock()
		return err
	}
	ops := cls.ops.Load()
	if ops == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: class %s is not compiled", ErrNotInitialized, cls.Name)
	}
	prev, prevStatic := o.ops.Load(), o.static
	o.ops.Store(ops)
	o.static = true
	r.mu.Unlock()

	if prev != nil {
		dropRef(prev, prevStatic)
	}
	return nil
}

// Create allocates a zeroed instance of cls and initialises it. Classes
// defined with NewClass get a bare *Object and must have Size == HeaderSize;
// classes defined with DefineClass get their own instance type.
func (r *Registry) Create(cls *Class) (Instance, error) {
	if cls == nil {
		return nil, fmt.Errorf("%w: nil class", ErrInvalidArgument)
	}
	if cls.Size < HeaderSize {
		return nil, fmt.Errorf("%w: class %s: instance size %d below header size %d",
			ErrInvalidArgument, cls.Name, cls.Size, HeaderSize)
	}

	alloc := cls.alloc
	if alloc == nil {
		if cls.Size != HeaderSize {
			return nil, fmt.Errorf("%w: class %s: instance size %d needs an instance type",
				ErrInvalidArgument, cls.Name, cls.Size)
		}
		alloc = func() Instance { return new(Object) }
	}

	inst := alloc()
	if header(inst) == nil {
		return nil, fmt.Errorf("%w: instance of class %s", ErrAllocation, cls.Name)
	}
	if err := r.Init(inst, cls); err != nil {
		return nil, err
	}
	return inst, nil
}

// Delete releases inst: its class's reference count is decremented and, if
// this was the last reference, the class's compiled table is freed. The
// instance's header is cleared. Other instances of the same class keep the
// shared table.
//
// Instances left over from a registry that has shut down can still be
// deleted; only their header is cleared.
func (r *Registry) Delete(inst Instance) error {
	o := header(inst)
	if o == nil {
		return fmt.Errorf("%w: nil instance", ErrInvalidArgument)
	}
	ops := o.ops.Load()
	if ops == nil {
		return fmt.Errorf("%w: instance has no class", ErrNotInitialized)
	}
	cls := ops.cls
	if owner := cls.reg.Load(); owner != nil && owner != r && cls.ops.Load() == ops {
		return fmt.Errorf("%w: %s", ErrForeignClass, cls.Name)
	}
	return unbindInstance(o)
}

// unbindInstance clears o's header and drops its class reference.
func unbindInstance(o *Object) error {
	ops := o.ops.Load()
	if ops == nil {
		return nil
	}
	r := ops.cls.reg.Load()
	if r == nil {
		o.ops.Store(nil)
		return nil
	}

	r.mu.Lock()
	static := o.static
	o.ops.Store(nil)
	o.static = false
	r.mu.Unlock()

	dropRef(ops, static)
	return nil
}

// dropRef releases one counted reference an instance held on ops, under the
// lock of the registry owning ops's class, freeing the class's table on the
// last reference. Static references and tables detached by Shutdown or
// FreeTable hold nothing.
func dropRef(ops *Ops, static bool) {
	if static {
		return
	}
	cls := ops.cls
	r := cls.reg.Load()
	if r == nil {
		return
	}

	r.mu.Lock()
	var freed *Ops
	if r.owns(cls) && cls.ops.Load() == ops && cls.refs > 0 {
		cls.refs--
		if cls.refs == 0 {
			freed = cls.ops.Swap(nil)
			r.retireLocked(freed)
		}
	}
	r.mu.Unlock()

	if freed != nil {
		r.release(freed)
		r.log.Debugf("last instance of %s deleted, compiled table freed", cls.Name)
	}
}

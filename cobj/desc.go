package cobj

import "sync/atomic"

// Desc describes a single operation (method name).
//
// Every operation has exactly one Desc for the lifetime of the program, and
// descriptors are compared by address. The numeric id used to index the
// dispatch cache is assigned lazily, under the registry lock, the first time
// a class implementing the operation is compiled. Zero means unassigned.
type Desc struct {
	name  string
	id    atomic.Uint32
	deflt Method

	// accepts reports whether fn has the operation's function type.
	// Nil for untyped descriptors.
	accepts func(fn any) bool
}

// NewDesc creates an untyped operation descriptor. deflt is the
// implementation used when no class in a hierarchy overrides the operation;
// if nil, Nop is used.
func NewDesc(name string, deflt any) *Desc {
	if deflt == nil {
		deflt = Nop
	}
	d := &Desc{name: name}
	d.deflt = Method{Desc: d, Func: deflt}
	return d
}

// Name returns the operation name.
func (d *Desc) Name() string {
	return d.name
}

// ID returns the operation id, or 0 if none has been assigned yet.
func (d *Desc) ID() uint32 {
	return d.id.Load()
}

// Default returns the default implementation entry.
func (d *Desc) Default() *Method {
	return &d.deflt
}

// assignID gives d the next id from *next if it has none. Must be called
// with the registry lock held; the compare-and-swap keeps two registries
// sharing a descriptor from both assigning it.
func (d *Desc) assignID(next *uint32) {
	if d.id.Load() != 0 {
		return
	}
	if d.id.CompareAndSwap(0, *next) {
		*next++
	}
}

// Nop is the default implementation for untyped descriptors. It reports
// "not supported" by returning -1.
func Nop() int {
	return -1
}

// ---------------------------------------------------------------------------
// Op: typed façade over Desc
// ---------------------------------------------------------------------------

// Op is a typed operation. F is the implementation's function type; every
// implementation registered through Impl, and the default, share it.
//
//	var fooBar = cobj.NewOp("foo_bar", func(o cobj.Instance) int { return -1 })
//
//	fooBar.Func(obj)(obj)
type Op[F any] struct {
	desc *Desc
}

// NewOp creates a typed operation with the given default implementation.
// deflt must be non-nil.
func NewOp[F any](name string, deflt F) Op[F] {
	d := NewDesc(name, deflt)
	d.accepts = func(fn any) bool {
		_, ok := fn.(F)
		return ok
	}
	return Op[F]{desc: d}
}

// Desc returns the underlying descriptor.
func (op Op[F]) Desc() *Desc {
	return op.desc
}

// Impl builds a method table entry binding fn to this operation.
func (op Op[F]) Impl(fn F) Method {
	return Method{Desc: op.desc, Func: fn}
}

// Default returns the default implementation.
func (op Op[F]) Default() F {
	return op.desc.deflt.Func.(F)
}

// Func returns the implementation answering this operation for inst, going
// through the dispatch cache of inst's class. A nil or unbound instance
// resolves to the default implementation.
func (op Op[F]) Func(inst Instance) F {
	if m, err := Lookup(inst, op.desc); err == nil {
		if fn, ok := m.Func.(F); ok {
			return fn
		}
	}
	return op.Default()
}

// ClassFunc returns the class-side implementation of this operation for
// cls. See ClassLookup.
func (op Op[F]) ClassFunc(cls *Class) F {
	if m, err := ClassLookup(cls, op.desc); err == nil {
		if fn, ok := m.Func.(F); ok {
			return fn
		}
	}
	return op.Default()
}

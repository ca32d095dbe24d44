package cobj

import "fmt"

// Lookup returns the entry answering d for inst. The compiled table's cache
// slot for d is probed first; on a miss the resolver runs and its result is
// stored in the slot.
//
// Lookup never fails to resolve a bound instance: operations no class in
// the hierarchy implements resolve to d's default entry.
func Lookup(inst Instance, d *Desc) (*Method, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidArgument)
	}
	o := header(inst)
	if o == nil {
		return nil, fmt.Errorf("%w: nil instance", ErrInvalidArgument)
	}
	ops := o.ops.Load()
	if ops == nil {
		return nil, fmt.Errorf("%w: instance has no class", ErrNotInitialized)
	}
	return ops.lookup(d), nil
}

// ClassLookup returns the class-side entry answering d for cls, for
// operations invoked on the class itself rather than on an instance. The
// class's compiled table is used when it has one; otherwise the hierarchy
// is resolved directly, without caching.
func ClassLookup(cls *Class, d *Desc) (*Method, error) {
	if cls == nil || d == nil {
		return nil, fmt.Errorf("%w: nil class or descriptor", ErrInvalidArgument)
	}
	if ops := cls.ops.Load(); ops != nil {
		return ops.lookup(d), nil
	}
	return Resolve(cls, d), nil
}

// Call dispatches an untyped operation on inst. fn receives the resolved
// implementation, which it is expected to type-assert and invoke.
//
//	err := cobj.Call(obj, fooBar, func(impl any) { impl.(func(cobj.Instance) int)(obj) })
func Call(inst Instance, d *Desc, fn func(impl any)) error {
	m, err := Lookup(inst, d)
	if err != nil {
		return err
	}
	fn(m.Func)
	return nil
}

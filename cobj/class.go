package cobj

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Class is a static class definition: a method table, the size of its
// instances and an ordered list of base classes.
//
// The exported fields are assembled once at program start and must not be
// changed after the class is first compiled. The unexported fields are
// runtime state owned by the registry the class is bound to.
type Class struct {
	Name    string      // Class name, for diagnostics
	Methods MethodTable // Own methods
	Size    uintptr     // Instance size in bytes, at least HeaderSize
	Bases   []*Class    // Base classes in resolution order

	alloc func() Instance

	reg atomic.Pointer[Registry]

	// Guarded by reg.mu.
	refs   uint32 // live counted instances plus static pins
	pinned uint32 // pins taken by CompileStatic

	// Written under reg.mu; read without it by class-side dispatch.
	ops atomic.Pointer[Ops]
}

// NewClass defines a class whose instances are bare Objects. size must be
// HeaderSize for Create to accept the class.
func NewClass(name string, methods MethodTable, size uintptr, bases ...*Class) *Class {
	return &Class{
		Name:    name,
		Methods: methods,
		Size:    size,
		Bases:   bases,
	}
}

// DefineClass defines a class whose instances are *T. T must embed Object.
//
//	type Queue struct {
//		cobj.Object
//		items list.List
//	}
//
//	var QueueClass = cobj.DefineClass[Queue]("queue", queueMethods)
func DefineClass[T any, PT interface {
	*T
	Instance
}](name string, methods MethodTable, bases ...*Class) *Class {
	var zero T
	c := NewClass(name, methods, unsafe.Sizeof(zero), bases...)
	c.alloc = func() Instance { return PT(new(T)) }
	return c
}

// String returns the class name.
func (c *Class) String() string {
	return c.Name
}

// Compiled reports whether the class currently has a compiled table.
func (c *Class) Compiled() bool {
	return c.ops.Load() != nil
}

// Ops returns the class's compiled table, or nil.
func (c *Class) Ops() *Ops {
	return c.ops.Load()
}

// IsSubclassOf returns true if c is other or inherits from it through any
// base class.
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == other {
		return true
	}
	for _, b := range c.Bases {
		if b != nil && b.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// validate checks the method tables of c and every ancestor, and rejects
// nil or cyclic base class lists.
func (c *Class) validate() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*Class]int)
	var walk func(cls *Class) error
	walk = func(cls *Class) error {
		switch state[cls] {
		case visiting:
			return fmt.Errorf("%w: class %s inherits from itself", ErrInvalidArgument, cls.Name)
		case done:
			return nil
		}
		state[cls] = visiting
		if err := cls.Methods.validate(cls.Name); err != nil {
			return err
		}
		for i, b := range cls.Bases {
			if b == nil {
				return fmt.Errorf("%w: class %s: base class %d is nil", ErrInvalidArgument, cls.Name, i)
			}
			if err := walk(b); err != nil {
				return err
			}
		}
		state[cls] = done
		return nil
	}
	return walk(c)
}

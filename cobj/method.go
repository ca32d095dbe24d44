package cobj

import "fmt"

// Method pairs an operation descriptor with a class-specific implementation.
type Method struct {
	Desc *Desc
	Func any
}

// MethodTable is a class's ordered list of method entries. A zero Method
// terminates the table early; entries after it are ignored.
type MethodTable []Method

// nullMethod initialises every cache slot. Its descriptor is nil, so it
// never matches a real lookup.
var nullMethod = &Method{}

func (m *Method) isEnd() bool {
	return m.Desc == nil && m.Func == nil
}

// Len returns the number of entries before the terminator.
func (mt MethodTable) Len() int {
	for i := range mt {
		if mt[i].isEnd() {
			return i
		}
	}
	return len(mt)
}

// find scans the table linearly for d, comparing descriptors by address.
func (mt MethodTable) find(d *Desc) *Method {
	for i := range mt {
		m := &mt[i]
		if m.isEnd() {
			break
		}
		if m.Desc == d {
			return m
		}
	}
	return nil
}

// validate checks every entry up to the terminator.
func (mt MethodTable) validate(class string) error {
	for i := range mt {
		m := &mt[i]
		if m.isEnd() {
			return nil
		}
		switch {
		case m.Desc == nil:
			return fmt.Errorf("%w: class %s: method %d has no descriptor", ErrInvalidArgument, class, i)
		case m.Func == nil:
			return fmt.Errorf("%w: class %s: method %s has no implementation", ErrInvalidArgument, class, m.Desc.name)
		case m.Desc.accepts != nil && !m.Desc.accepts(m.Func):
			return fmt.Errorf("%w: class %s: method %s has implementation of type %T", ErrInvalidArgument, class, m.Desc.name, m.Func)
		}
	}
	return nil
}

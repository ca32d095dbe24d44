package cobj

import "testing"

// newTestRegistry returns a registry shut down at the end of the test.
func newTestRegistry(t testing.TB, opts Options) *Registry {
	t.Helper()
	r := NewRegistry(opts)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

// method is shorthand for an untyped entry returning tag.
func method(d *Desc, tag string) Method {
	return Method{Desc: d, Func: func() string { return tag }}
}

// tagOf calls an entry built by method.
func tagOf(t testing.TB, m *Method) string {
	t.Helper()
	fn, ok := m.Func.(func() string)
	if !ok {
		t.Fatalf("entry func has type %T, want func() string", m.Func)
	}
	return fn()
}

// stringDesc creates a descriptor whose default returns "default:<name>".
func stringDesc(name string) *Desc {
	return NewDesc(name, func() string { return "default:" + name })
}

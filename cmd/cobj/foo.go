package main

import (
	"fmt"
	"io"

	"github.com/chazu/libcobj/cobj"
)

// Operations of the foo interface. The defaults answer for classes that do
// not implement them.
var (
	fooBar = cobj.NewOp("foo_bar", func(w io.Writer, o cobj.Instance) {
		fmt.Fprintf(w, "foo_bar: default implementation (instance of %s)\n", cobj.ClassOf(o))
	})
	fooStaticBar = cobj.NewOp("foo_static_bar", func(w io.Writer, c *cobj.Class) {
		fmt.Fprintf(w, "foo_static_bar: default implementation (%s)\n", c)
	})
	fooBaz = cobj.NewOp("foo_baz", func(w io.Writer, o cobj.Instance, n int) int {
		fmt.Fprintf(w, "foo_baz: not implemented by %s\n", cobj.ClassOf(o))
		return -1
	})
)

// nullClass implements nothing.
var nullClass = cobj.NewClass("null", nil, cobj.HeaderSize)

var fooClass = cobj.NewClass("foo", cobj.MethodTable{
	fooBar.Impl(func(w io.Writer, o cobj.Instance) {
		fmt.Fprintf(w, "own_method: instance of %s_class\n", cobj.ClassOf(o))
	}),
	fooStaticBar.Impl(func(w io.Writer, c *cobj.Class) {
		fmt.Fprintf(w, "own_static_method: of %s_class\n", c)
	}),
}, cobj.HeaderSize)

// Package cobj implements a small dynamic-dispatch runtime.
//
// This package contains:
//   - Operation descriptors with lazily assigned numeric ids
//   - Classes: method tables, instance sizes and ordered base classes
//   - Compiled dispatch tables with a fixed-size per-class method cache
//   - Depth-first multiple-inheritance method resolution
//   - Reference-counted instance lifecycle (create/init/delete)
//
// A Registry owns the metadata lock and every piece of mutable class state.
// Classes and method tables are declared once at program start and never
// mutated afterwards; only a class's compiled table comes and goes as its
// instances are created and deleted.
package cobj

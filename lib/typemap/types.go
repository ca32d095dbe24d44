// Package typemap maps configured names onto registered types. A type pairs
// a type name and numeric cookie with the class implementing it; a map file
// binds arbitrary names to type names and is loaded into a SQLite store.
package typemap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/libcobj/cobj"
)

var (
	// ErrNotFound is returned when a name or type is not known.
	ErrNotFound = errors.New("typemap: not found")

	// ErrDuplicate is returned when a name, type or cookie is registered twice.
	ErrDuplicate = errors.New("typemap: duplicate")

	// ErrSyntax is returned for malformed map file lines.
	ErrSyntax = errors.New("typemap: syntax error")
)

// Type is a registered type implemented by a class.
type Type struct {
	Name   string
	Cookie uint32
	Class  *cobj.Class
}

// Types is a registry of types, looked up by name or cookie.
type Types struct {
	mu       sync.RWMutex
	byName   map[string]*Type
	byCookie map[uint32]*Type
}

// NewTypes creates an empty type registry.
func NewTypes() *Types {
	return &Types{
		byName:   make(map[string]*Type),
		byCookie: make(map[uint32]*Type),
	}
}

// Register adds t. Names and cookies must be unique.
func (ts *Types) Register(t *Type) error {
	if t == nil || t.Name == "" || t.Class == nil {
		return fmt.Errorf("%w: type needs a name and a class", cobj.ErrInvalidArgument)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.byName[t.Name]; ok {
		return fmt.Errorf("%w: type %s", ErrDuplicate, t.Name)
	}
	if prev, ok := ts.byCookie[t.Cookie]; ok {
		return fmt.Errorf("%w: cookie %d of %s already used by %s", ErrDuplicate, t.Cookie, t.Name, prev.Name)
	}
	ts.byName[t.Name] = t
	ts.byCookie[t.Cookie] = t
	return nil
}

// ByName returns the type called name, or nil.
func (ts *Types) ByName(name string) *Type {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.byName[name]
}

// ByCookie returns the type with the given cookie, or nil.
func (ts *Types) ByCookie(cookie uint32) *Type {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.byCookie[cookie]
}

// Len returns the number of registered types.
func (ts *Types) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.byName)
}

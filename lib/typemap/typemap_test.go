package typemap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/libcobj/cobj"
)

func testTypes(t *testing.T) (*Types, *cobj.Class, *cobj.Class) {
	t.Helper()
	element := cobj.NewClass("element", nil, cobj.HeaderSize)
	text := cobj.NewClass("text", nil, cobj.HeaderSize)
	ts := NewTypes()
	for _, typ := range []*Type{
		{Name: "element", Cookie: 1, Class: element},
		{Name: "text", Cookie: 3, Class: text},
	} {
		if err := ts.Register(typ); err != nil {
			t.Fatal(err)
		}
	}
	return ts, element, text
}

func openMap(t *testing.T, dsn string, ts *Types) *Map {
	t.Helper()
	m, err := Open(context.Background(), dsn, ts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func TestTypesRegister(t *testing.T) {
	ts, element, _ := testTypes(t)

	if got := ts.ByName("element"); got == nil || got.Class != element {
		t.Errorf("ByName(element) = %v", got)
	}
	if got := ts.ByCookie(3); got == nil || got.Name != "text" {
		t.Errorf("ByCookie(3) = %v, want text", got)
	}
	if ts.ByName("missing") != nil || ts.ByCookie(99) != nil {
		t.Error("unknown lookups should return nil")
	}
	if ts.Len() != 2 {
		t.Errorf("Len = %d, want 2", ts.Len())
	}

	tests := []struct {
		name string
		typ  *Type
		want error
	}{
		{"duplicate name", &Type{Name: "element", Cookie: 7, Class: element}, ErrDuplicate},
		{"duplicate cookie", &Type{Name: "comment", Cookie: 1, Class: element}, ErrDuplicate},
		{"no class", &Type{Name: "attr", Cookie: 2}, cobj.ErrInvalidArgument},
		{"no name", &Type{Cookie: 2, Class: element}, cobj.ErrInvalidArgument},
		{"nil", nil, cobj.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ts.Register(tt.typ); !errors.Is(err, tt.want) {
				t.Errorf("Register = %v, want %v", err, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Map file parsing
// ---------------------------------------------------------------------------

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		typ     string
		ok      bool
		wantErr bool
	}{
		{line: ""},
		{line: "   \t"},
		{line: "# comment"},
		{line: "  \t# indented comment"},
		{line: "div:element", name: "div", typ: "element", ok: true},
		{line: "  p:element", name: "p", typ: "element", ok: true},
		{line: "span:text # inline", name: "span", typ: "text", ok: true},
		{line: "b:text#tight", name: "b", typ: "text", ok: true},
		{line: "i:text trailing words", name: "i", typ: "text", ok: true},
		{line: "a:text:extra", name: "a", typ: "text", ok: true},
		{line: "noseparator", wantErr: true},
		{line: ":element", wantErr: true},
		{line: "div:", wantErr: true},
		{line: "div :element", wantErr: true},
	}

	for _, tt := range tests {
		name, typ, ok, err := parseLine(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if name != tt.name || typ != tt.typ || ok != tt.ok {
			t.Errorf("parseLine(%q) = %q, %q, %v, want %q, %q, %v",
				tt.line, name, typ, ok, tt.name, tt.typ, tt.ok)
		}
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

const sampleMap = `# node names
div:element
p:element    # paragraph

#text
span:text
`

func TestLoadAndGet(t *testing.T) {
	ctx := context.Background()
	ts, element, text := testTypes(t)
	m := openMap(t, "", ts)

	n, err := m.Load(ctx, strings.NewReader(sampleMap))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Errorf("Load added %d entries, want 3", n)
	}

	tests := []struct {
		name string
		want *cobj.Class
	}{
		{"div", element},
		{"p", element},
		{"span", text},
	}
	for _, tt := range tests {
		typ, err := m.Get(ctx, tt.name)
		if err != nil {
			t.Errorf("Get(%s): %v", tt.name, err)
			continue
		}
		if typ.Class != tt.want {
			t.Errorf("Get(%s) class = %v, want %v", tt.name, typ.Class, tt.want)
		}
	}

	if _, err := m.Get(ctx, "table"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unmapped) = %v, want ErrNotFound", err)
	}

	entries, err := m.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Name != "div" || entries[2] != (Entry{"span", "text"}) {
		t.Errorf("Entries = %v", entries)
	}
}

func TestGetUnregisteredType(t *testing.T) {
	ctx := context.Background()
	ts, _, _ := testTypes(t)
	m := openMap(t, "", ts)

	if _, err := m.Load(ctx, strings.NewReader("svg:vector\n")); err != nil {
		t.Fatal(err)
	}
	if typ, err := m.Lookup(ctx, "svg"); err != nil || typ != "vector" {
		t.Errorf("Lookup(svg) = %q, %v, want vector", typ, err)
	}
	if _, err := m.Get(ctx, "svg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(svg) = %v, want ErrNotFound", err)
	}
}

func TestLoadNoOverwrite(t *testing.T) {
	ctx := context.Background()
	ts, _, _ := testTypes(t)
	m := openMap(t, "", ts)

	if _, err := m.Load(ctx, strings.NewReader("div:element\n")); err != nil {
		t.Fatal(err)
	}
	_, err := m.Load(ctx, strings.NewReader("p:element\ndiv:text\n"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Load(duplicate) = %v, want ErrDuplicate", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name line 2", err)
	}

	if typ, _ := m.Lookup(ctx, "div"); typ != "element" {
		t.Errorf("div = %q, want element (no overwrite)", typ)
	}
	if _, err := m.Lookup(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("p = %v, want ErrNotFound (failed load is rolled back)", err)
	}
}

func TestLoadSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"missing type", "div:element\nbroken\n", "line 2"},
		{"empty name", ":text\n", "line 1"},
		{"long line", "div:element\n" + strings.Repeat("x", MaxLine+1) + ":text\n", "line 2"},
		{"very long line", strings.Repeat("x", 100*1024) + "\n", "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _, _ := testTypes(t)
			m := openMap(t, "", ts)
			_, err := m.Load(context.Background(), strings.NewReader(tt.input))
			if !errors.Is(err, ErrSyntax) {
				t.Fatalf("Load = %v, want ErrSyntax", err)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q should mention %s", err, tt.line)
			}
		})
	}
}

func TestLoadLongestLine(t *testing.T) {
	ts, _, _ := testTypes(t)
	m := openMap(t, "", ts)
	line := strings.Repeat("x", MaxLine-len(":text")) + ":text"
	if n, err := m.Load(context.Background(), strings.NewReader(line)); err != nil || n != 1 {
		t.Errorf("Load(%d-byte line) = %d, %v, want 1, nil", len(line), n, err)
	}
}

func TestLoadFileAndPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	conf := filepath.Join(dir, "types.conf")
	if err := os.WriteFile(conf, []byte(sampleMap), 0644); err != nil {
		t.Fatal(err)
	}
	dsn := filepath.Join(dir, "types.db")
	ts, element, _ := testTypes(t)

	m, err := Open(ctx, dsn, ts)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := m.LoadFile(ctx, conf); err != nil || n != 3 {
		t.Fatalf("LoadFile = %d, %v, want 3, nil", n, err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openMap(t, dsn, ts)
	typ, err := reopened.Get(ctx, "div")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if typ.Class != element {
		t.Errorf("div class = %v, want element", typ.Class)
	}

	if _, err := reopened.LoadFile(ctx, filepath.Join(dir, "missing.conf")); err == nil {
		t.Error("LoadFile should fail for a missing file")
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	ts, element, _ := testTypes(t)
	m := openMap(t, "", ts)
	if _, err := m.Load(ctx, strings.NewReader(sampleMap)); err != nil {
		t.Fatal(err)
	}

	reg := cobj.NewRegistry(cobj.Options{})
	defer reg.Shutdown()

	inst, err := m.Create(ctx, reg, "p")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cobj.ClassOf(inst) != element {
		t.Errorf("ClassOf = %v, want element", cobj.ClassOf(inst))
	}
	if err := reg.Delete(inst); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Create(ctx, reg, "nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create(unmapped) = %v, want ErrNotFound", err)
	}
}

func TestOpenNilTypes(t *testing.T) {
	if _, err := Open(context.Background(), "", nil); !errors.Is(err, cobj.ErrInvalidArgument) {
		t.Errorf("Open(nil types) = %v, want ErrInvalidArgument", err)
	}
}

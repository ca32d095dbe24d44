package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[runtime]
max-tables = 32
stats = true

[log]
verbosity = 1
file = "cobj.log"

[typemap]
conf = "types.conf"
db = "types.db"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Runtime.MaxTables != 32 {
		t.Errorf("max-tables = %d, want 32", c.Runtime.MaxTables)
	}
	if !c.Runtime.Stats {
		t.Error("stats should be true")
	}
	if c.Log.Verbosity != 1 {
		t.Errorf("verbosity = %d, want 1", c.Log.Verbosity)
	}

	absDir, _ := filepath.Abs(dir)
	if c.Dir != absDir {
		t.Errorf("dir = %q, want %q", c.Dir, absDir)
	}
	if got := c.LogFile(); got == nil || *got != filepath.Join(absDir, "cobj.log") {
		t.Errorf("LogFile = %v, want %s", got, filepath.Join(absDir, "cobj.log"))
	}
	if got, want := c.TypeMapConfPath(), filepath.Join(absDir, "types.conf"); got != want {
		t.Errorf("TypeMapConfPath = %q, want %q", got, want)
	}
	if got, want := c.TypeMapDSN(), filepath.Join(absDir, "types.db"); got != want {
		t.Errorf("TypeMapDSN = %q, want %q", got, want)
	}

	opts := c.RegistryOptions()
	if opts.MaxTables != 32 || !opts.Stats {
		t.Errorf("RegistryOptions = %+v", opts)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[runtime]
stats = true
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Runtime.MaxTables != 0 {
		t.Errorf("max-tables = %d, want 0 (unlimited)", c.Runtime.MaxTables)
	}
	if c.TypeMapDSN() != ":memory:" {
		t.Errorf("TypeMapDSN = %q, want :memory:", c.TypeMapDSN())
	}
	if c.LogFile() != nil {
		t.Errorf("LogFile = %q, want nil", *c.LogFile())
	}
	if c.TypeMapConfPath() != "" {
		t.Errorf("TypeMapConfPath = %q, want empty", c.TypeMapConfPath())
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
	if c.TypeMapDSN() != ":memory:" {
		t.Errorf("TypeMapDSN = %q, want :memory:", c.TypeMapDSN())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"negative max-tables", "[runtime]\nmax-tables = -1\n", true},
		{"verbosity too high", "[log]\nverbosity = 9\n", true},
		{"syntax error", "[runtime\n", false},
		{"wrong type", "[runtime]\nstats = \"yes\"\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalid) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail without a cobj.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[runtime]\nmax-tables = 4\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil {
		t.Fatal("FindAndLoad should find the parent cobj.toml")
	}
	if c.Runtime.MaxTables != 4 {
		t.Errorf("max-tables = %d, want 4", c.Runtime.MaxTables)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	if _, err := FindAndLoad(t.TempDir()); err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
}

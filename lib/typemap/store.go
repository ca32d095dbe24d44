package typemap

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/libcobj/cobj"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// MaxLine is the longest accepted map file line, newline excluded.
const MaxLine = 2046

// Map is a SQLite-backed name to type map.
type Map struct {
	db    *sql.DB
	dsn   string
	types *Types
	log   commonlog.Logger
}

// Entry is one name to type binding.
type Entry struct {
	Name string
	Type string
}

// Open opens the store at dsn, creating its table if needed. An empty dsn
// opens a private in-memory store. types resolves the type names the map
// refers to.
func Open(ctx context.Context, dsn string, types *Types) (*Map, error) {
	if types == nil {
		return nil, fmt.Errorf("%w: nil type registry", cobj.ErrInvalidArgument)
	}
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS typemap (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	m := &Map{
		db:    db,
		dsn:   dsn,
		types: types,
		log:   commonlog.GetLogger("cobj.typemap"),
	}
	m.log.Debugf("opened type map store %s", dsn)
	return m, nil
}

// Close closes the database connection.
func (m *Map) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Load reads map file lines of the form
//
//	name:type	# comment
//
// and stores each binding. Blank lines and lines starting with '#' are
// skipped; only the first word of a line is used. Existing bindings are
// never overwritten: a repeated name fails with ErrDuplicate. Load is
// atomic; on error nothing is stored. It returns the number of bindings
// added.
func (m *Map) Load(ctx context.Context, r io.Reader) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO typemap (name, type) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	n := 0
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if len(line) > MaxLine {
			return 0, fmt.Errorf("%w: line %d: longer than %d bytes", ErrSyntax, lineno, MaxLine)
		}

		name, typ, ok, err := parseLine(line)
		if err != nil {
			return 0, fmt.Errorf("%w: line %d: %s", ErrSyntax, lineno, err)
		}
		if !ok {
			continue
		}

		res, err := stmt.ExecContext(ctx, name, typ)
		if err != nil {
			return 0, fmt.Errorf("storing %s: %w", name, err)
		}
		if added, err := res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("storing %s: %w", name, err)
		} else if added == 0 {
			return 0, fmt.Errorf("%w: line %d: name %s already mapped", ErrDuplicate, lineno, name)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return 0, fmt.Errorf("%w: line %d: longer than %d bytes", ErrSyntax, lineno+1, MaxLine)
		}
		return 0, fmt.Errorf("reading map: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	m.log.Infof("loaded %d type map entries from %s", n, m.dsn)
	return n, nil
}

// LoadFile loads the map file at path. See Load.
func (m *Map) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	n, err := m.Load(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// parseLine extracts the binding from one map file line. ok is false for
// blank and comment lines.
func parseLine(line string) (name, typ string, ok bool, err error) {
	line = strings.TrimLeft(line, " \t")
	if line == "" || line[0] == '#' {
		return "", "", false, nil
	}
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	if f := strings.Fields(line); len(f) > 0 {
		line = f[0]
	}

	name, typ, found := strings.Cut(line, ":")
	if !found || name == "" || typ == "" {
		return "", "", false, fmt.Errorf("want name:type, got %q", line)
	}
	// A second separator ends the type.
	typ, _, _ = strings.Cut(typ, ":")
	if typ == "" {
		return "", "", false, fmt.Errorf("want name:type, got %q", line)
	}
	return name, typ, true, nil
}

// Lookup returns the type name mapped to name.
func (m *Map) Lookup(ctx context.Context, name string) (string, error) {
	var typ string
	err := m.db.QueryRowContext(ctx, "SELECT type FROM typemap WHERE name = ?", name).Scan(&typ)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: name %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("querying %s: %w", name, err)
	}
	return typ, nil
}

// Get returns the registered type name is mapped to.
func (m *Map) Get(ctx context.Context, name string) (*Type, error) {
	typ, err := m.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	t := m.types.ByName(typ)
	if t == nil {
		return nil, fmt.Errorf("%w: type %s (mapped from %s)", ErrNotFound, typ, name)
	}
	return t, nil
}

// Entries returns every binding, sorted by name.
func (m *Map) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT name, type FROM typemap ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Type); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Create creates an instance of the class implementing the type name is
// mapped to.
func (m *Map) Create(ctx context.Context, reg *cobj.Registry, name string) (cobj.Instance, error) {
	t, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return reg.Create(t.Class)
}

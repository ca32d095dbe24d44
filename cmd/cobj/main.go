// cobj demonstrates the dispatch runtime: a class changing an instance's
// behaviour at run time, a queue class with class-side constructors, and an
// optional name to type map.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/libcobj/cobj"
	"github.com/chazu/libcobj/config"
	"github.com/chazu/libcobj/lib/tailq"
	"github.com/chazu/libcobj/lib/typemap"

	_ "github.com/tliron/commonlog/simple"
)

// options collects the command line.
type options struct {
	cfg      *config.Config
	typeMap  string
	snapshot string
}

func main() {
	configPath := flag.String("config", "", "Path to cobj.toml (default: search upwards from the working directory)")
	verbose := flag.Int("v", 0, "Log verbosity (overrides [log] verbosity when set)")
	typeMapPath := flag.String("typemap", "", "Type map file to load (overrides [typemap] conf)")
	snapshotPath := flag.String("snapshot", "", "Write a CBOR registry snapshot to this file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cobj [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the dispatch runtime demo.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cobj -v 2                          # Debug logging\n")
		fmt.Fprintf(os.Stderr, "  cobj -typemap dom.conf             # Also load a type map\n")
		fmt.Fprintf(os.Stderr, "  cobj -snapshot registry.cbor       # Save a registry snapshot\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := cfg.Log.Verbosity
	if *verbose != 0 {
		verbosity = *verbose
	}
	commonlog.Configure(verbosity, cfg.LogFile())

	opts := options{
		cfg:      cfg,
		typeMap:  cfg.TypeMapConfPath(),
		snapshot: *snapshotPath,
	}
	if *typeMapPath != "" {
		opts.typeMap = *typeMapPath
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads path, or the nearest cobj.toml, or the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// run executes the demo against a fresh registry.
func run(ctx context.Context, opts options, w io.Writer) (err error) {
	reg := cobj.NewRegistry(opts.cfg.RegistryOptions())
	defer func() {
		if serr := reg.Shutdown(); serr != nil && err == nil {
			err = serr
		}
	}()

	if err := runFoo(reg, w); err != nil {
		return fmt.Errorf("foo: %w", err)
	}
	if err := runQueue(reg, w); err != nil {
		return fmt.Errorf("tailq: %w", err)
	}
	if opts.typeMap != "" {
		if err := runTypeMap(ctx, reg, opts.cfg.TypeMapDSN(), opts.typeMap, w); err != nil {
			return fmt.Errorf("typemap: %w", err)
		}
	}

	if opts.cfg.Runtime.Stats {
		s := reg.Stats()
		fmt.Fprintf(w, "cache: %d hits, %d misses (%.1f%%)\n", s.Hits, s.Misses, s.HitRate())
	}
	if opts.snapshot != "" {
		if err := writeSnapshot(reg, opts.snapshot); err != nil {
			return err
		}
		fmt.Fprintf(w, "snapshot written to %s\n", opts.snapshot)
	}
	return nil
}

// runFoo changes the class of one instance and shows which implementation
// answers each call.
func runFoo(reg *cobj.Registry, w io.Writer) error {
	if err := reg.Compile(fooClass); err != nil {
		return err
	}
	fooStaticBar.ClassFunc(fooClass)(w, fooClass)

	o, err := reg.Create(nullClass)
	if err != nil {
		return err
	}
	fooBar.Func(o)(w, o)

	if err := reg.FreeTable(nullClass); err != nil {
		return err
	}
	if err := reg.Init(o, fooClass); err != nil {
		return err
	}
	fooBar.Func(o)(w, o)
	if rc := fooBaz.Func(o)(w, o, 1); rc != -1 {
		return fmt.Errorf("foo_baz answered %d", rc)
	}
	return reg.Delete(o)
}

// runQueue enqueues three items and drains the queue.
func runQueue(reg *cobj.Registry, w io.Writer) error {
	if err := reg.Compile(tailq.Class); err != nil {
		return err
	}
	q, err := tailq.Create(reg, tailq.Class)
	if err != nil {
		return err
	}
	for _, item := range []int{1, 2, 3} {
		if err := tailq.Add(q, item); err != nil {
			return err
		}
	}
	for v := tailq.Poll(q); v != nil; v = tailq.Poll(q) {
		fmt.Fprintf(w, "item: %d\n", v)
	}
	return tailq.Destroy(reg, q)
}

// runTypeMap loads a type map binding names to the demo classes and creates
// an instance for every binding.
func runTypeMap(ctx context.Context, reg *cobj.Registry, dsn, path string, w io.Writer) error {
	types := typemap.NewTypes()
	for _, t := range []*typemap.Type{
		{Name: "null", Cookie: 0, Class: nullClass},
		{Name: "foo", Cookie: 1, Class: fooClass},
		{Name: "tailq", Cookie: 2, Class: tailq.Class},
	} {
		if err := types.Register(t); err != nil {
			return err
		}
	}

	m, err := typemap.Open(ctx, dsn, types)
	if err != nil {
		return err
	}
	defer m.Close()

	n, err := m.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "typemap: %d entries loaded\n", n)

	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		o, err := m.Create(ctx, reg, e.Name)
		if err != nil {
			fmt.Fprintf(w, "  %s -> %s: %v\n", e.Name, e.Type, err)
			continue
		}
		fmt.Fprintf(w, "  %s -> %s\n", e.Name, cobj.ClassOf(o))
		fooBar.Func(o)(w, o)
		if err := reg.Delete(o); err != nil {
			return err
		}
	}
	return nil
}

func writeSnapshot(reg *cobj.Registry, path string) error {
	data, err := cobj.MarshalSnapshot(reg.Snapshot())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

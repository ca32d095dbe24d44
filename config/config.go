// Package config handles cobj.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/libcobj/cobj"
)

// FileName is the name of the configuration file.
const FileName = "cobj.toml"

// Config represents a cobj.toml configuration.
type Config struct {
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	TypeMap TypeMap `toml:"typemap"`

	// Dir is the directory containing the cobj.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures the dispatch registry.
type Runtime struct {
	MaxTables int  `toml:"max-tables"`
	Stats     bool `toml:"stats"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// TypeMap configures the type map store.
type TypeMap struct {
	Conf string `toml:"conf"`
	DB   string `toml:"db"`
}

// ErrInvalid is returned for configuration values out of range.
var ErrInvalid = errors.New("invalid configuration")

// Default returns the configuration used when no cobj.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a cobj.toml file from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a cobj.toml file,
// then loads and returns the configuration. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.TypeMap.DB == "" {
		c.TypeMap.DB = ":memory:"
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Runtime.MaxTables < 0 {
		return fmt.Errorf("%w: runtime.max-tables %d is negative", ErrInvalid, c.Runtime.MaxTables)
	}
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 2 {
		return fmt.Errorf("%w: log.verbosity %d out of range [-4, 2]", ErrInvalid, c.Log.Verbosity)
	}
	return nil
}

// RegistryOptions returns the registry options described by the [runtime]
// section.
func (c *Config) RegistryOptions() cobj.Options {
	return cobj.Options{
		MaxTables: c.Runtime.MaxTables,
		Stats:     c.Runtime.Stats,
	}
}

// LogFile returns the log file path for commonlog.Configure, or nil for
// stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.path(c.Log.File)
	return &path
}

// TypeMapConfPath returns the absolute path of the type map file, or "" if
// none is configured.
func (c *Config) TypeMapConfPath() string {
	if c.TypeMap.Conf == "" {
		return ""
	}
	return c.path(c.TypeMap.Conf)
}

// TypeMapDSN returns the SQLite data source for the type map store.
// In-memory and URI sources are returned unchanged; file names are resolved
// against Dir.
func (c *Config) TypeMapDSN() string {
	db := c.TypeMap.DB
	if db == ":memory:" || filepath.IsAbs(db) || len(db) > 5 && db[:5] == "file:" {
		return db
	}
	return c.path(db)
}

func (c *Config) path(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

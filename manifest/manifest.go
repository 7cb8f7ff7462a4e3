// Package manifest handles lispgc.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked for by FindAndLoad.
const FileName = "lispgc.toml"

// Manifest represents a lispgc.toml configuration.
type Manifest struct {
	Heap HeapConfig `toml:"heap"`
	Eval EvalConfig `toml:"eval"`
	GC   GCConfig   `toml:"gc"`
	REPL REPLConfig `toml:"repl"`
	Log  LogConfig  `toml:"log"`

	// Dir is the directory containing the lispgc.toml file (set at load time).
	Dir string `toml:"-"`
}

// HeapConfig bounds the object store.
type HeapConfig struct {
	MaxObjects int `toml:"max-objects"` // 0 = unbounded
}

// EvalConfig bounds evaluation.
type EvalConfig struct {
	MaxDepth int `toml:"max-depth"` // 0 = unlimited
}

// GCConfig controls collector diagnostics.
type GCConfig struct {
	Debug bool   `toml:"debug"`
	Dump  string `toml:"dump"` // snapshot output path, YAML for .yaml/.yml
}

// REPLConfig configures the interactive loop.
type REPLConfig struct {
	History string `toml:"history"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no lispgc.toml exists.
func Default() *Manifest {
	return &Manifest{
		REPL: REPLConfig{History: ".lispgc_history"},
	}
}

// Load parses a lispgc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Keys missing from the
// file keep their Default values.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a lispgc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
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
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	var errs []error
	if m.Heap.MaxObjects < 0 {
		errs = append(errs, fmt.Errorf("heap.max-objects must not be negative, got %d", m.Heap.MaxObjects))
	}
	if m.Eval.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("eval.max-depth must not be negative, got %d", m.Eval.MaxDepth))
	}
	if m.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", m.Log.Verbosity))
	}
	return errors.Join(errs...)
}

// HistoryPath returns the REPL history file. A relative path is resolved
// against the directory of the configuration file, or against the user's
// home directory when no file was loaded.
func (m *Manifest) HistoryPath() string {
	h := m.REPL.History
	if h == "" || filepath.IsAbs(h) {
		return h
	}
	if m.Dir != "" {
		return filepath.Join(m.Dir, h)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, h)
	}
	return h
}

// DumpPath returns the snapshot output path, resolved like HistoryPath
// but relative to the working directory when no file was loaded.
func (m *Manifest) DumpPath() string {
	d := m.GC.Dump
	if d == "" || filepath.IsAbs(d) || m.Dir == "" {
		return d
	}
	return filepath.Join(m.Dir, d)
}

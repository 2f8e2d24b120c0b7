// Package config handles scriptbridge.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/tliron/commonlog"

	"github.com/chazu/scriptbridge/glue"
	"github.com/chazu/scriptbridge/vm"
)

// FileName is the name of the configuration file.
const FileName = "scriptbridge.toml"

var log = commonlog.GetLogger("scriptbridge.config")

// Config represents a scriptbridge.toml file.
type Config struct {
	Compile  Compile         `toml:"compile"`
	Parse    Parse           `toml:"parse"`
	Flags    map[string]bool `toml:"flags"`
	IntFlags map[string]int  `toml:"int-flags"`
	VM       VM              `toml:"vm"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Compile mirrors glue.CompileOpts.
type Compile struct {
	BytecodeVersion int      `toml:"bytecode-version"`
	Optimization    int      `toml:"optimization"`
	Debug           int      `toml:"debug"`
	Coverage        int      `toml:"coverage"`
	VectorLib       string   `toml:"vector-lib"`
	VectorCtor      string   `toml:"vector-ctor"`
	MutableGlobals  []string `toml:"mutable-globals"`
}

// Parse mirrors glue.ParseOpts.
type Parse struct {
	TypeAnnotations bool `toml:"type-annotations"`
	Continue        bool `toml:"continue"`
	Declarations    bool `toml:"declarations"`
	Comments        bool `toml:"comments"`
}

// VM configures states created with NewState.
type VM struct {
	MemoryLimit int64 `toml:"memory-limit"`
	Sandbox     bool  `toml:"sandbox"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := glue.DefaultCompileOpts()
	p := glue.DefaultParseOpts()
	return &Config{
		Compile: Compile{
			Optimization: c.OptimizationLevel,
			Debug:        c.DebugLevel,
			Coverage:     c.CoverageLevel,
		},
		Parse: Parse{
			TypeAnnotations: p.AllowTypeAnnotations,
			Continue:        p.SupportContinueStatement,
			Declarations:    p.AllowDeclarationSyntax,
			Comments:        p.CaptureComments,
		},
	}
}

// ParseBytes decodes a configuration from TOML text. Keys that are not part
// of the schema are errors.
func ParseBytes(data []byte) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	cfg, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Load reads scriptbridge.toml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// FindAndLoad walks up from startDir to find a scriptbridge.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			log.Debugf("using %s", path)
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var result *multierror.Error
	level := func(name string, v int) {
		if v < 0 || v > 2 {
			result = multierror.Append(result, fmt.Errorf("compile.%s must be 0, 1 or 2, got %d", name, v))
		}
	}
	level("optimization", c.Compile.Optimization)
	level("debug", c.Compile.Debug)
	level("coverage", c.Compile.Coverage)
	if c.Compile.BytecodeVersion < 0 {
		result = multierror.Append(result, fmt.Errorf("compile.bytecode-version must not be negative"))
	}
	if c.VM.MemoryLimit < 0 {
		result = multierror.Append(result, fmt.Errorf("vm.memory-limit must not be negative"))
	}
	return result.ErrorOrNil()
}

// CompileOpts converts the [compile] section to boundary options.
func (c *Config) CompileOpts() glue.CompileOpts {
	opts := glue.CompileOpts{
		Version:           glue.CompileOptsVersion,
		BytecodeVersion:   c.Compile.BytecodeVersion,
		OptimizationLevel: c.Compile.Optimization,
		DebugLevel:        c.Compile.Debug,
		CoverageLevel:     c.Compile.Coverage,
		MutableGlobals:    c.Compile.MutableGlobals,
	}
	if c.Compile.VectorLib != "" {
		opts.VectorLib = glue.Some(c.Compile.VectorLib)
	}
	if c.Compile.VectorCtor != "" {
		opts.VectorCtor = glue.Some(c.Compile.VectorCtor)
	}
	return opts
}

// ParseOpts converts the [parse] section to boundary options.
func (c *Config) ParseOpts() glue.ParseOpts {
	return glue.ParseOpts{
		AllowTypeAnnotations:     c.Parse.TypeAnnotations,
		SupportContinueStatement: c.Parse.Continue,
		AllowDeclarationSyntax:   c.Parse.Declarations,
		CaptureComments:          c.Parse.Comments,
	}
}

// ApplyFlags sets every flag named in [flags] and [int-flags]. Unknown
// names are collected and reported together; known flags are still set.
func (c *Config) ApplyFlags() error {
	var result *multierror.Error

	for _, name := range sortedKeys(c.Flags) {
		h, ok := glue.FindFlag([]byte(name)).Get()
		if !ok {
			result = multierror.Append(result, fmt.Errorf("unknown flag %q", name))
			continue
		}
		glue.SetFlag(h, c.Flags[name])
	}
	for _, name := range sortedKeys(c.IntFlags) {
		h, ok := glue.FindIntFlag([]byte(name)).Get()
		if !ok {
			result = multierror.Append(result, fmt.Errorf("unknown int flag %q", name))
			continue
		}
		glue.SetIntFlag(h, c.IntFlags[name])
	}
	return result.ErrorOrNil()
}

// NewState creates a VM state configured by the [vm] section.
func (c *Config) NewState() (*vm.State, error) {
	L := vm.NewState()
	if c.VM.MemoryLimit > 0 {
		L.Global().SetMemoryLimit(c.VM.MemoryLimit)
	}
	if c.VM.Sandbox {
		if status := glue.Sandbox(L); status != vm.StatusOk {
			return nil, fmt.Errorf("sandbox: %s: %w", status, L.LastError())
		}
	}
	return L, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package config loads and validates classweave run configuration.
//
// Configuration comes from built-in defaults, then an optional YAML or CUE
// file, then CLASSWEAVE_* environment variables. The merged result is
// checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/classweave/internal/classfile"
	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/filter"
	"github.com/roach88/classweave/internal/hooks"
	"github.com/roach88/classweave/internal/report"
)

//go:embed schema.cue
var schemaSource string

// Environment variables read by Load.
const (
	EnvLoggableType = "CLASSWEAVE_LOGGABLE_TYPE"
	EnvHookModule   = "CLASSWEAVE_HOOK_MODULE"
	EnvMaxArity     = "CLASSWEAVE_MAX_ARITY"
	EnvLogLevel     = "CLASSWEAVE_LOG_LEVEL"
)

// Hooks names the two hook methods relative to the hook module.
type Hooks struct {
	Wrap hooks.Target `yaml:"wrap" json:"wrap"`
	Log  hooks.Target `yaml:"log" json:"log"`
}

// Config is one run's configuration.
type Config struct {
	// LoggableType is the field descriptor of the logger type to wrap.
	LoggableType string `yaml:"loggable_type" json:"loggable_type"`

	// HookModule is the package prefix of the hook classes.
	HookModule string `yaml:"hook_module" json:"hook_module"`
	Hooks      Hooks  `yaml:"hooks" json:"hooks"`

	// HookClassPath lists directories holding compiled hook classes. When
	// empty the hooks are assumed to exist.
	HookClassPath []string `yaml:"hook_classpath,omitempty" json:"hook_classpath,omitempty"`

	MaxArity int `yaml:"max_arity" json:"max_arity"`

	// Exclude is a CEL expression; members it matches are skipped.
	Exclude string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// Concurrency bounds how many classes a batch run transforms at once.
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LoggableType: hooks.DefaultLoggableType,
		HookModule:   hooks.DefaultModule,
		Hooks:        Hooks{Wrap: hooks.DefaultWrap, Log: hooks.DefaultLog},
		MaxArity:     engine.MaxArity,
		Concurrency:  4,
		LogLevel:     "warn",
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(&cfg, path, data); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, errs
	}
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return ValidationErrors(cueValidationErrors(ErrSyntax, err))
		}
		if err := v.Decode(cfg); err != nil {
			return ValidationErrors(cueValidationErrors(ErrSyntax, err))
		}
		return nil
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		line := 0
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			fmt.Sscanf(err.Error(), "yaml: line %d:", &line)
		}
		return ValidationErrors{{Field: filepath.Base(path), Message: err.Error(), Code: ErrSyntax, Line: line}}
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLoggableType); ok && v != "" {
		c.LoggableType = v
	}
	if v, ok := lookup(EnvHookModule); ok && v != "" {
		c.HookModule = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(EnvMaxArity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ValidationErrors{{Field: EnvMaxArity, Message: "not an integer: " + v, Code: ErrSchema}}
		}
		c.MaxArity = n
	}
	return nil
}

// Validate checks c against the schema and the semantic rules the schema
// cannot express. All problems are returned.
func (c Config) Validate() ValidationErrors {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}

	var errs ValidationErrors
	merged := schema.Unify(ctx.Encode(c))
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		errs = append(errs, cueValidationErrors(ErrSchema, err)...)
	}

	if !classfile.ValidFieldDescriptor(c.LoggableType) || !strings.HasPrefix(c.LoggableType, "L") {
		errs = append(errs, ValidationError{
			Field:   "loggable_type",
			Message: fmt.Sprintf("%q is not a class type descriptor", c.LoggableType),
			Code:    ErrDescriptor,
		})
	}
	if _, err := filter.Compile(c.Exclude); err != nil {
		errs = append(errs, ValidationError{Field: "exclude", Message: err.Error(), Code: ErrExclude})
	}
	for i, dir := range c.HookClassPath {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("hook_classpath[%d]", i),
				Message: fmt.Sprintf("%s is not a directory", dir),
				Code:    ErrClassPath,
			})
		}
	}
	return errs
}

// HookSpec returns the resolved hook targets.
func (c Config) HookSpec() hooks.Spec {
	spec := hooks.NewSpec(c.HookModule, c.LoggableType)
	if c.Hooks.Wrap != (hooks.Target{}) {
		spec.Wrap = c.Hooks.Wrap
	}
	if c.Hooks.Log != (hooks.Target{}) {
		spec.Log = c.Hooks.Log
	}
	return spec
}

// SymbolTable returns the table hooks are linked against: the hook
// classpath when one is configured, otherwise the built-in exports of
// HookSpec.
func (c Config) SymbolTable() hooks.SymbolTable {
	if len(c.HookClassPath) > 0 {
		return hooks.NewClassPath(c.HookClassPath...)
	}
	return hooks.DefaultExports(c.HookSpec())
}

// Filter compiles Exclude. It returns nil when no expression is set.
func (c Config) Filter() (*filter.Filter, error) {
	return filter.Compile(c.Exclude)
}

// EngineOptions returns the engine settings carried by c.
func (c Config) EngineOptions() ([]engine.EngineOption, error) {
	f, err := c.Filter()
	if err != nil {
		return nil, err
	}
	opts := []engine.EngineOption{engine.WithMaxArity(c.MaxArity)}
	if f != nil {
		opts = append(opts, engine.WithExclude(f))
	}
	return opts, nil
}

// NewEngine builds an engine from c.
func (c Config) NewEngine(opts ...engine.EngineOption) (*engine.Engine, error) {
	base, err := c.EngineOptions()
	if err != nil {
		return nil, err
	}
	r := hooks.NewResolver(c.HookSpec(), c.SymbolTable())
	return engine.New(r, append(base, opts...)...), nil
}

func cueValidationErrors(code string, err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{Field: "config", Message: e.Error(), Code: code}
		if path := e.Path(); len(path) > 0 {
			ve.Field = strings.Join(path, ".")
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 && pos[0].Filename() != "schema.cue" {
			ve.Line = pos[0].Line()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "config", Message: err.Error(), Code: code})
	}
	return out
}

// Digest identifies the settings that change a class's output. Concurrency
// and log level are excluded.
func (c Config) Digest() (string, error) {
	spec := c.HookSpec()
	wrap, log := spec.WrapRef(), spec.LogRef()
	classpath := make([]any, len(c.HookClassPath))
	for i, dir := range c.HookClassPath {
		classpath[i] = dir
	}
	return report.ConfigDigest(map[string]any{
		"loggable_type":  c.LoggableType,
		"wrap":           wrap.Owner + "." + wrap.Name + wrap.Desc,
		"log":            log.Owner + "." + log.Name + log.Desc,
		"hook_classpath": classpath,
		"max_arity":      c.MaxArity,
		"exclude":        c.Exclude,
	})
}

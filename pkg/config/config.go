package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/analyzer/cfg"
	"github.com/panbanda/sieve/pkg/analyzer/dfg"
	"github.com/panbanda/sieve/pkg/analyzer/metrics"
	"github.com/panbanda/sieve/pkg/analyzer/taint"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/policy"
)

//go:embed config.schema.json
var schemaJSON []byte

// Formats lists the values accepted by output.format.
var Formats = []string{"text", "json", "markdown", "yaml", "toon", "sarif"}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for sieve.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis" json:"analysis"`

	// Per-pass settings
	ControlFlow ControlFlowConfig `koanf:"controlflow" toml:"controlflow" json:"controlflow"`
	DataFlow    DataFlowConfig    `koanf:"dataflow" toml:"dataflow" json:"dataflow"`
	Taint       TaintConfig       `koanf:"taint" toml:"taint" json:"taint"`

	// Thresholds for the metric checks
	Thresholds metrics.Thresholds `koanf:"thresholds" toml:"thresholds" json:"thresholds"`

	// Pass/fail policy for --policy runs
	Policy PolicyConfig `koanf:"policy" toml:"policy" json:"policy"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude" json:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache" json:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" json:"output"`

	// Log settings
	Log LogConfig `koanf:"log" toml:"log" json:"log"`
}

// AnalysisConfig controls which passes run and how much work each may do.
type AnalysisConfig struct {
	ControlFlow bool `koanf:"controlflow" toml:"controlflow" json:"controlflow"`
	DataFlow    bool `koanf:"dataflow" toml:"dataflow" json:"dataflow"`
	Taint       bool `koanf:"taint" toml:"taint" json:"taint"`
	Metrics     bool `koanf:"metrics" toml:"metrics" json:"metrics"`
	Lint        bool `koanf:"lint" toml:"lint" json:"lint"`
	Resources   bool `koanf:"resources" toml:"resources" json:"resources"`
	Imports     bool `koanf:"imports" toml:"imports" json:"imports"`
	Fixes       bool `koanf:"fixes" toml:"fixes" json:"fixes"`
	MaxNodes    int  `koanf:"max_nodes" toml:"max_nodes" json:"max_nodes"` // visit budget per pass and file
	MaxDepth    int  `koanf:"max_depth" toml:"max_depth" json:"max_depth"` // lowering depth bound
	Workers     int  `koanf:"workers" toml:"workers" json:"workers"`       // 0 means 2x NumCPU
}

// ControlFlowConfig configures the control-flow pass.
type ControlFlowConfig struct {
	TerminalCalls []string `koanf:"terminal_calls" toml:"terminal_calls" json:"terminal_calls"`
}

// DataFlowConfig configures the data-flow pass.
type DataFlowConfig struct {
	ExtraNames     []string `koanf:"extra_names" toml:"extra_names" json:"extra_names"`
	IgnorePrefixes []string `koanf:"ignore_prefixes" toml:"ignore_prefixes" json:"ignore_prefixes"`
	IgnoreNames    []string `koanf:"ignore_names" toml:"ignore_names" json:"ignore_names"`
}

// TaintConfig configures the taint pass. A pattern ending in ".*" matches
// every attribute of its prefix.
type TaintConfig struct {
	Sources []string `koanf:"sources" toml:"sources" json:"sources"`
	Sinks   []string `koanf:"sinks" toml:"sinks" json:"sinks"`
}

// PolicyConfig mirrors policy.Policy. A negative max_warnings disables the
// warning limit.
type PolicyConfig struct {
	MaxWarnings int  `koanf:"max_warnings" toml:"max_warnings" json:"max_warnings"`
	FailOnError bool `koanf:"fail_on_error" toml:"fail_on_error" json:"fail_on_error"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns" json:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs" json:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore" json:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled" json:"enabled"`
	Dir     string `koanf:"dir" toml:"dir" json:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl" json:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format" json:"format"` // text, json, markdown, yaml, toon, sarif
	Color  bool   `koanf:"color" toml:"color" json:"color"`
}

// LogConfig controls diagnostic logging. An empty file logs to stderr.
type LogConfig struct {
	Level      string `koanf:"level" toml:"level" json:"level"`
	File       string `koanf:"file" toml:"file" json:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days" toml:"max_age_days" json:"max_age_days"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	p := policy.Default()
	return &Config{
		Analysis: AnalysisConfig{
			ControlFlow: true,
			DataFlow:    true,
			Taint:       true,
			Metrics:     true,
			Lint:        true,
			Resources:   true,
			Imports:     true,
			Fixes:       true,
			MaxNodes:    analyzer.DefaultBudget,
			MaxDepth:    parser.DefaultMaxDepth,
		},
		ControlFlow: ControlFlowConfig{
			TerminalCalls: slices.Clone(cfg.DefaultTerminalCalls),
		},
		DataFlow: DataFlowConfig{
			ExtraNames:     []string{},
			IgnorePrefixes: slices.Clone(dfg.DefaultIgnorePrefixes),
			IgnoreNames:    slices.Clone(dfg.DefaultIgnoreNames),
		},
		Taint: TaintConfig{
			Sources: slices.Clone(taint.DefaultSources),
			Sinks:   slices.Clone(taint.DefaultSinks),
		},
		Thresholds: metrics.DefaultThresholds(),
		Policy: PolicyConfig{
			MaxWarnings: p.MaxWarnings,
			FailOnError: p.FailOnError,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_pb2.py",
				"*_pb2_grpc.py",
			},
			Dirs: []string{
				".git",
				".sieve",
				".venv",
				"venv",
				"node_modules",
				"__pycache__",
				"build",
				"dist",
				"site-packages",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".sieve/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadResult is a loaded configuration and the file it came from. Source
// is empty when no file was found and defaults apply.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads the given file instead of searching for one.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithDir searches for config files in dir instead of the working
// directory.
func WithDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// SearchPaths are the config files looked up, in order, relative to the
// search directory.
var SearchPaths = []string{
	"sieve.toml",
	"sieve.yaml",
	"sieve.yml",
	"sieve.json",
	".sieve.toml",
	filepath.Join(".sieve", "config.toml"),
}

// LoadConfig finds, loads and validates the configuration.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dir: "."}
	for _, opt := range opts {
		opt(o)
	}

	path := o.path
	if path == "" {
		path = Find(o.dir)
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: c, Source: path}, nil
}

// Find returns the first config file present in dir, or "".
func Find(dir string) string {
	for _, name := range SearchPaths {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load loads configuration from a file over the defaults and validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	c := DefaultConfig()

	// Determine parser based on extension
	var p koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p = yaml.Parser()
	case ".json":
		p = kjson.Parser()
	default:
		p = toml.Parser()
	}

	if err := k.Load(file.Provider(path), p); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := validateSchema(k.Raw()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("sieve.schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("sieve.schema.json")
})

// validateSchema checks the raw file content against the embedded schema.
// Values are round-tripped through JSON so the validator sees JSON types
// regardless of the source format.
func validateSchema(raw map[string]any) error {
	schema, err := compiled()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q must be one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	if c.Analysis.MaxNodes <= 0 {
		errs = append(errs, fmt.Errorf("analysis.max_nodes must be positive, got %d", c.Analysis.MaxNodes))
	}
	if c.Analysis.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("analysis.max_depth must be positive, got %d", c.Analysis.MaxDepth))
	}
	t := c.Thresholds
	if t.CyclomaticModerate > t.CyclomaticHigh {
		errs = append(errs, fmt.Errorf("thresholds.cyclomatic_moderate (%d) exceeds cyclomatic_high (%d)", t.CyclomaticModerate, t.CyclomaticHigh))
	}
	if t.StatementsLarge > t.StatementsVeryLarge {
		errs = append(errs, fmt.Errorf("thresholds.statements_large (%d) exceeds statements_very_large (%d)", t.StatementsLarge, t.StatementsVeryLarge))
	}
	if t.ParamsMany > t.ParamsTooMany {
		errs = append(errs, fmt.Errorf("thresholds.params_many (%d) exceeds params_too_many (%d)", t.ParamsMany, t.ParamsTooMany))
	}
	for _, pattern := range c.Exclude.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude.patterns %q: %w", pattern, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// PolicySettings returns the configured pass/fail policy.
func (c *Config) PolicySettings() policy.Policy {
	return policy.Policy{MaxWarnings: c.Policy.MaxWarnings, FailOnError: c.Policy.FailOnError}
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	path = filepath.ToSlash(path)

	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, "/"+dir+"/") || strings.HasPrefix(path, dir+"/") {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

// Passes builds the enabled analysis passes with their configured options.
func (c *Config) Passes() []analyzer.Pass {
	budget := c.Analysis.MaxNodes
	var passes []analyzer.Pass
	if c.Analysis.ControlFlow {
		passes = append(passes, cfg.New(
			cfg.WithTerminalCalls(c.ControlFlow.TerminalCalls),
			cfg.WithBudget(budget),
		))
	}
	if c.Analysis.DataFlow {
		passes = append(passes, dfg.New(
			dfg.WithExtraNames(c.DataFlow.ExtraNames),
			dfg.WithIgnorePrefixes(c.DataFlow.IgnorePrefixes),
			dfg.WithIgnoreNames(c.DataFlow.IgnoreNames),
			dfg.WithBudget(budget),
		))
	}
	if c.Analysis.Taint {
		passes = append(passes, taint.New(
			taint.WithSources(c.Taint.Sources),
			taint.WithSinks(c.Taint.Sinks),
			taint.WithBudget(budget),
		))
	}
	if c.Analysis.Metrics {
		passes = append(passes, metrics.New(
			metrics.WithThresholds(c.Thresholds),
			metrics.WithBudget(budget),
		))
	}
	if c.Analysis.Lint {
		passes = append(passes, metrics.NewLint(metrics.WithBudget(budget)))
	}
	if c.Analysis.Resources {
		passes = append(passes, metrics.NewResources(metrics.WithBudget(budget)))
	}
	if c.Analysis.Imports {
		passes = append(passes, metrics.NewImports(metrics.WithBudget(budget)))
	}
	return passes
}

// ParserOptions returns the front-end options derived from the config.
func (c *Config) ParserOptions() []parser.Option {
	return []parser.Option{parser.WithMaxDepth(c.Analysis.MaxDepth)}
}

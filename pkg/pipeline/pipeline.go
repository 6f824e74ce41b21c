// Package pipeline runs every analysis pass over one file and turns their
// output into the final, deterministic finding list: duplicates and
// double reports are dropped, scopes and fixes attached, and an empty
// result becomes a single CLEAN_CODE finding.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/analyzer/cfg"
	"github.com/panbanda/sieve/pkg/analyzer/dfg"
	"github.com/panbanda/sieve/pkg/analyzer/metrics"
	"github.com/panbanda/sieve/pkg/analyzer/taint"
	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/fix"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/scope"
	"github.com/panbanda/sieve/pkg/syntax"
)

// CleanCodeMessage is the message of the finding emitted for a file with
// no issues.
const CleanCodeMessage = "No issues detected by the static analyzers."

// Engine runs the analysis passes for single files. It holds no per-file
// state and is safe for concurrent use.
type Engine struct {
	passes   []analyzer.Pass
	logger   *slog.Logger
	registry *fix.Registry
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithPasses replaces the passes the engine runs.
func WithPasses(passes ...analyzer.Pass) Option {
	return func(e *Engine) {
		e.passes = passes
	}
}

// WithLogger sets the logger used to report pass faults.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFixRegistry sets the fix generators. A nil registry disables fixes.
func WithFixRegistry(r *fix.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// DefaultPasses returns every pass with its default configuration.
func DefaultPasses() []analyzer.Pass {
	return []analyzer.Pass{
		cfg.New(),
		dfg.New(),
		taint.New(),
		metrics.New(),
		metrics.NewLint(),
		metrics.NewResources(),
		metrics.NewImports(),
	}
}

// FromConfig returns the options that select the configuration's enabled
// passes and fix setting.
func FromConfig(c *config.Config) []Option {
	opts := []Option{WithPasses(c.Passes()...)}
	if !c.Analysis.Fixes {
		opts = append(opts, WithFixRegistry(nil))
	}
	return opts
}

// New creates an engine running the default passes.
func New(opts ...Option) *Engine {
	e := &Engine{
		passes:   DefaultPasses(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry: fix.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Passes returns the names of the configured passes.
func (e *Engine) Passes() []string {
	names := make([]string, len(e.passes))
	for i, p := range e.passes {
		names[i] = p.Name()
	}
	return names
}

// Run analyzes tree and returns its findings. It never fails: a faulty
// pass contributes the findings it produced before the fault.
func (e *Engine) Run(tree *syntax.Tree) []models.Finding {
	if tree == nil {
		return []models.Finding{cleanCode()}
	}
	if tree.SyntaxError != nil {
		return []models.Finding{syntaxError(tree.SyntaxError)}
	}

	var all []models.Finding
	for _, p := range e.passes {
		findings, err := p.Analyze(tree)
		switch {
		case errors.Is(err, analyzer.ErrNodesSkipped):
			e.logger.Debug("pass skipped nodes", "pass", p.Name(), "path", tree.Path, "error", err)
		case err != nil:
			e.logger.Warn("pass stopped early",
				"pass", p.Name(),
				"path", tree.Path,
				"findings", len(findings),
				"budget_exceeded", errors.Is(err, analyzer.ErrBudgetExceeded),
				"error", err)
		}
		all = append(all, findings...)
	}

	scopes := scope.Build(tree)
	all = dedupe(all)
	all = suppress(all, scopes)

	lines := fix.SplitLines(tree.Source)
	for i, f := range all {
		if f.Location != nil {
			f = f.WithScope(scopes.Resolve(f.Location.Line))
		}
		all[i] = e.attachFix(f, lines)
	}

	if len(all) == 0 {
		return []models.Finding{cleanCode()}
	}
	slices.SortStableFunc(all, compare)
	return all
}

// AnalyzeSource parses source with psr, detecting the language from path,
// and runs the engine on it.
func (e *Engine) AnalyzeSource(ctx context.Context, psr *parser.Parser, source []byte, path string) (models.FileResult, error) {
	lang := parser.DetectLanguage(path)
	if lang == syntax.LangUnknown {
		return models.FileResult{}, fmt.Errorf("%w: %s", parser.ErrUnsupportedLanguage, path)
	}
	return e.AnalyzeCode(ctx, psr, source, lang, path)
}

// AnalyzeCode runs the engine on source declared to be in lang.
func (e *Engine) AnalyzeCode(ctx context.Context, psr *parser.Parser, source []byte, lang syntax.Language, path string) (models.FileResult, error) {
	if lang == syntax.LangUnknown {
		return models.FileResult{}, fmt.Errorf("%w: %s", parser.ErrUnsupportedLanguage, lang)
	}
	tree, err := psr.Parse(ctx, source, lang, path)
	if err != nil {
		return models.FileResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return models.FileResult{
		Path:     path,
		Language: string(lang),
		Findings: e.Run(tree),
	}, nil
}

func (e *Engine) attachFix(f models.Finding, lines []string) models.Finding {
	if e.registry == nil || !e.registry.Has(f.RuleID) {
		return f
	}
	fx, err := e.registry.Generate(f, lines)
	if err != nil {
		e.logger.Debug("fix rejected", "rule", f.RuleID, "line", f.Line(), "error", err)
		return f
	}
	return f.WithFix(fx)
}

func syntaxError(se *syntax.SyntaxError) models.Finding {
	f := analyzer.Finding(models.RuleSyntaxError, models.SeverityError, models.CategorySyntax, models.ConfidenceHigh,
		fmt.Sprintf("Syntax error: %s (line %d)", se.Message, se.Line))
	return f.At(se.Line, se.Column).WithScope(models.ScopeRef{})
}

func cleanCode() models.Finding {
	return analyzer.Finding(models.RuleCleanCode, models.SeverityInfo, models.CategoryStyle, models.ConfidenceLow, CleanCodeMessage)
}

// dedupe drops exact duplicates, keeping the first occurrence.
func dedupe(findings []models.Finding) []models.Finding {
	seen := make(map[uint64]bool, len(findings))
	out := findings[:0:0]
	for _, f := range findings {
		k := key(f)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

func key(f models.Finding) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(f.RuleID)
	_, _ = d.Write([]byte{0})
	if f.Location != nil {
		_, _ = fmt.Fprintf(d, "%d:%d:%d", f.Location.Line, f.Location.Column, f.Location.EndLine)
	}
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(f.Symbol)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(f.Message)
	return d.Sum64()
}

// suppress drops unused-variable findings for a name that was reported as
// used before assignment in the same scope.
func suppress(findings []models.Finding, scopes *scope.Tree) []models.Finding {
	reported := make(map[string]*roaring.Bitmap)
	scopeOf := func(f models.Finding) uint32 {
		return uint32(scopes.Innermost(f.Line()).ID)
	}
	for _, f := range findings {
		if f.RuleID != models.RuleUseBeforeAssign || f.Symbol == "" || f.Location == nil {
			continue
		}
		bm, ok := reported[f.Symbol]
		if !ok {
			bm = roaring.New()
			reported[f.Symbol] = bm
		}
		bm.Add(scopeOf(f))
	}
	if len(reported) == 0 {
		return findings
	}

	out := findings[:0:0]
	for _, f := range findings {
		if f.RuleID == models.RuleUnusedVariable && f.Location != nil {
			if bm, ok := reported[f.Symbol]; ok && bm.Contains(scopeOf(f)) {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

func compare(a, b models.Finding) int {
	switch {
	case models.Less(a, b):
		return -1
	case models.Less(b, a):
		return 1
	}
	return 0
}

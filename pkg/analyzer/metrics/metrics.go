// Package metrics implements the threshold checks that complement the core
// passes: per-function complexity, size, parameter count and nesting, plus
// the lint, resource and unused-import checks.
package metrics

import (
	"fmt"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// Ensure the checks implement analyzer.Pass.
var (
	_ analyzer.Pass = (*Analyzer)(nil)
	_ analyzer.Pass = (*Lint)(nil)
	_ analyzer.Pass = (*Resources)(nil)
	_ analyzer.Pass = (*Imports)(nil)
)

// Analyzer computes function metrics and reports threshold violations.
type Analyzer struct {
	thresholds Thresholds
	budget     int
}

// settings holds the options shared by the metric, lint, resource and
// import checks. Each check reads the fields it needs.
type settings struct {
	thresholds     Thresholds
	budget         int
	openers        []string
	dangerousCalls []string
}

// Option is a functional option for configuring the checks in this package.
type Option func(*settings)

// WithThresholds sets the metric thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *settings) {
		s.thresholds = t
	}
}

// WithBudget sets the visit budget. Non-positive values keep the default.
func WithBudget(budget int) Option {
	return func(s *settings) {
		if budget > 0 {
			s.budget = budget
		}
	}
}

// WithOpeners replaces the calls the resource check treats as returning a
// file object.
func WithOpeners(names []string) Option {
	return func(s *settings) {
		s.openers = names
	}
}

// WithDangerousCalls replaces the calls the lint check reports on sight.
// A trailing ".*" matches every attribute of a module.
func WithDangerousCalls(names []string) Option {
	return func(s *settings) {
		s.dangerousCalls = names
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		thresholds:     DefaultThresholds(),
		budget:         analyzer.DefaultBudget,
		openers:        DefaultOpeners,
		dangerousCalls: DefaultDangerousCalls,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New creates a metrics pass with the default thresholds.
func New(opts ...Option) *Analyzer {
	s := newSettings(opts)
	return &Analyzer{thresholds: s.thresholds, budget: s.budget}
}

// Name implements analyzer.Pass.
func (a *Analyzer) Name() string { return "metrics" }

// Analyze implements analyzer.Pass.
func (a *Analyzer) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(a.budget, func(r *analyzer.Reporter) {
		a.block(r, tree.Root.Body, false, 0, false)
	})
}

// Functions returns the metrics of every function in the tree, in source
// order.
func Functions(tree *syntax.Tree) []FunctionMetrics {
	if tree == nil || tree.Root == nil {
		return nil
	}
	var out []FunctionMetrics
	var walk func(body []syntax.Stmt, inClass bool)
	walk = func(body []syntax.Stmt, inClass bool) {
		for _, s := range body {
			switch n := s.(type) {
			case *syntax.FunctionDef:
				out = append(out, measure(n, inClass))
				walk(n.Body, false)
			case *syntax.ClassDef:
				walk(n.Body, true)
			default:
				for _, b := range syntax.Blocks(s) {
					walk(b, false)
				}
			}
		}
	}
	walk(tree.Root.Body, false)
	return out
}

// block walks a statement block tracking nesting depth. reported marks a
// chain of blocks already reported as too deep.
func (a *Analyzer) block(r *analyzer.Reporter, body []syntax.Stmt, inClass bool, depth int, reported bool) {
	for _, s := range body {
		r.Guard(func() { a.stmt(r, s, inClass, depth, reported) })
	}
}

func (a *Analyzer) stmt(r *analyzer.Reporter, s syntax.Stmt, inClass bool, depth int, reported bool) {
	r.Visit()
	switch n := s.(type) {
	case *syntax.FunctionDef:
		a.function(r, n, inClass)
		a.block(r, n.Body, false, 0, false)
		return
	case *syntax.ClassDef:
		a.block(r, n.Body, true, 0, false)
		return
	}

	if !opensBlock(s) {
		return
	}
	if depth+1 > a.thresholds.MaxNesting && !reported {
		f := analyzer.Finding(models.RuleDeepNesting, models.SeverityWarning, models.CategoryMaintainability, models.ConfidenceMedium,
			fmt.Sprintf("Deep nesting detected (depth=%d); blocks nest more than %d levels.", depth+1, a.thresholds.MaxNesting))
		pos := s.Position()
		r.Report(f.At(pos.Line, pos.Column))
		reported = true
	}
	for i, b := range syntax.Blocks(s) {
		next := depth + 1
		// An elif continues its parent's level.
		if ifs, ok := s.(*syntax.If); ok && i == 1 && isElif(ifs.Orelse) {
			next = depth
		}
		a.block(r, b, false, next, reported)
	}
}

func opensBlock(s syntax.Stmt) bool {
	switch s.(type) {
	case *syntax.If, *syntax.For, *syntax.While, *syntax.Try, *syntax.With:
		return true
	}
	return false
}

func isElif(orelse []syntax.Stmt) bool {
	if len(orelse) != 1 {
		return false
	}
	n, ok := orelse[0].(*syntax.If)
	return ok && n.Elif
}

func (a *Analyzer) function(r *analyzer.Reporter, fn *syntax.FunctionDef, method bool) {
	m := measure(fn, method)
	t := a.thresholds
	report := func(rule string, severity models.Severity, category models.Category, confidence models.Confidence, format string, args ...any) {
		f := analyzer.Finding(rule, severity, category, confidence, fmt.Sprintf(format, args...))
		f.Symbol = fn.Name
		r.Report(f.At(fn.Line, fn.Column))
	}

	switch {
	case m.Cyclomatic > t.CyclomaticHigh:
		report(models.RuleCyclomaticHigh, models.SeverityWarning, models.CategoryMaintainability, models.ConfidenceHigh,
			"High cyclomatic complexity in function '%s' (score=%d).", fn.Name, m.Cyclomatic)
	case m.Cyclomatic > t.CyclomaticModerate:
		report(models.RuleCyclomaticModerate, models.SeverityInfo, models.CategoryMaintainability, models.ConfidenceMedium,
			"Moderate cyclomatic complexity in function '%s' (score=%d).", fn.Name, m.Cyclomatic)
	}

	switch {
	case m.Statements > t.StatementsVeryLarge:
		report(models.RuleFunctionVeryLarge, models.SeverityWarning, models.CategoryMaintainability, models.ConfidenceHigh,
			"Function '%s' is very large (%d statements).", fn.Name, m.Statements)
	case m.Statements > t.StatementsLarge:
		report(models.RuleFunctionLarge, models.SeverityInfo, models.CategoryMaintainability, models.ConfidenceMedium,
			"Function '%s' is large (%d statements).", fn.Name, m.Statements)
	}

	switch {
	case m.Params > t.ParamsTooMany:
		report(models.RuleTooManyParams, models.SeverityWarning, models.CategoryDesign, models.ConfidenceHigh,
			"Function '%s' has too many parameters (%d).", fn.Name, m.Params)
	case m.Params > t.ParamsMany:
		report(models.RuleManyParams, models.SeverityInfo, models.CategoryDesign, models.ConfidenceMedium,
			"Function '%s' has many parameters (%d).", fn.Name, m.Params)
	}
}

// measure computes the metrics of fn. Nested function and class bodies
// belong to their own measurements. The receiver of a method is not
// counted as a parameter.
func measure(fn *syntax.FunctionDef, method bool) FunctionMetrics {
	m := FunctionMetrics{
		Name:       fn.Name,
		Line:       fn.Line,
		EndLine:    fn.EndLine,
		Cyclomatic: 1,
	}

	for i, p := range fn.Params {
		if p.Kind != syntax.ParamPositional {
			continue
		}
		if i == 0 && (method || p.Name == "self" || p.Name == "cls") {
			continue
		}
		m.Params++
	}

	var visit func(body []syntax.Stmt)
	visit = func(body []syntax.Stmt) {
		for _, s := range body {
			m.Statements++
			switch n := s.(type) {
			case *syntax.FunctionDef, *syntax.ClassDef:
				continue
			case *syntax.If, *syntax.For, *syntax.While:
				m.Cyclomatic++
			case *syntax.Try:
				m.Cyclomatic += uint32(len(n.Handlers))
			}
			for _, e := range stmtExprs(s) {
				m.Cyclomatic += exprDecisions(e)
			}
			for _, b := range syntax.Blocks(s) {
				visit(b)
			}
		}
	}
	visit(fn.Body)
	return m
}

// stmtExprs returns the expressions owned directly by s, excluding those of
// nested statements.
func stmtExprs(s syntax.Stmt) []syntax.Expr {
	var out []syntax.Expr
	for _, c := range syntax.Children(s) {
		if e, ok := c.(syntax.Expr); ok {
			out = append(out, e)
		}
	}
	return out
}

func exprDecisions(e syntax.Expr) uint32 {
	var count uint32
	syntax.Inspect(e, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.BoolOp:
			if len(n.Values) > 1 {
				count += uint32(len(n.Values) - 1)
			}
		case *syntax.IfExp:
			count++
		case *syntax.Comprehension:
			for _, g := range n.Generators {
				count += uint32(len(g.Ifs))
			}
		}
		return true
	})
	return count
}

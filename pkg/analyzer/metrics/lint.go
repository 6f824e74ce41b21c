package metrics

import (
	"fmt"
	"strings"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultDangerousCalls are calls reported wherever they appear, tainted
// input or not.
var DefaultDangerousCalls = []string{"eval", "exec", "os.system", "subprocess.*"}

// Lint reports exception handlers that hide errors, calls that execute
// code or commands, and files opened for writing.
type Lint struct {
	dangerous map[string]bool
	modules   map[string]bool
	budget    int
}

// NewLint creates the lint pass.
func NewLint(opts ...Option) *Lint {
	s := newSettings(opts)
	l := &Lint{dangerous: make(map[string]bool), modules: make(map[string]bool), budget: s.budget}
	for _, name := range s.dangerousCalls {
		if mod, ok := strings.CutSuffix(name, ".*"); ok {
			l.modules[mod] = true
			continue
		}
		l.dangerous[name] = true
	}
	return l
}

// Name implements analyzer.Pass.
func (l *Lint) Name() string { return "lint" }

// Analyze implements analyzer.Pass.
func (l *Lint) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(l.budget, func(r *analyzer.Reporter) {
		syntax.Inspect(tree.Root, func(n syntax.Node) bool {
			r.Visit()
			switch n := n.(type) {
			case *syntax.Try:
				for _, h := range n.Handlers {
					checkHandler(r, h)
				}
			case *syntax.Call:
				l.checkCall(r, n)
			}
			return true
		})
	})
}

func checkHandler(r *analyzer.Reporter, h syntax.ExceptHandler) {
	if h.Type == nil {
		f := analyzer.Finding(models.RuleBareExcept, models.SeverityWarning, models.CategoryLogic, models.ConfidenceHigh,
			"Bare except catches SystemExit and KeyboardInterrupt; name the exceptions to handle.")
		r.Report(f.At(h.Line, h.Column))
		return
	}
	if len(h.Body) == 1 {
		if _, ok := h.Body[0].(*syntax.Pass); ok {
			f := analyzer.Finding(models.RuleEmptyExcept, models.SeverityWarning, models.CategoryLogic, models.ConfidenceMedium,
				"Empty except block; the exception is silently ignored.")
			r.Report(f.At(h.Line, h.Column))
		}
	}
}

func (l *Lint) checkCall(r *analyzer.Reporter, c *syntax.Call) {
	callee := syntax.CalleeName(c)
	if callee == "" {
		return
	}
	if l.isDangerous(callee) {
		f := analyzer.Finding(models.RuleDangerousCall, models.SeverityError, models.CategorySecurity, models.ConfidenceHigh,
			fmt.Sprintf("Use of %s() can execute arbitrary code or commands.", callee))
		f.Symbol = callee
		r.Report(f.At(c.Line, c.Column))
		return
	}
	if callee == "open" || callee == "io.open" {
		if mode, ok := openMode(c); ok && strings.ContainsAny(mode, "wax+") {
			f := analyzer.Finding(models.RuleFileWrite, models.SeverityWarning, models.CategorySecurity, models.ConfidenceMedium,
				fmt.Sprintf("File opened for writing with mode '%s'; it can overwrite or modify files.", mode))
			r.Report(f.At(c.Line, c.Column))
		}
	}
}

func (l *Lint) isDangerous(callee string) bool {
	if l.dangerous[callee] {
		return true
	}
	if i := strings.LastIndexByte(callee, '.'); i > 0 {
		return l.modules[callee[:i]]
	}
	return false
}

// openMode returns the literal mode of an open call, positional or
// keyword. ok is false when the mode is absent or not a string literal.
func openMode(c *syntax.Call) (string, bool) {
	var mode syntax.Expr
	if len(c.Args) >= 2 {
		mode = c.Args[1]
	}
	for _, kw := range c.Keywords {
		if kw.Name == "mode" {
			mode = kw.Value
		}
	}
	lit, ok := mode.(*syntax.Constant)
	if !ok || lit.Kind != syntax.ConstString {
		return "", false
	}
	return unquote(lit.Value), true
}

// Package taint implements the intraprocedural taint pass. Values returned
// by source calls are tracked through assignments within one scope; a sink
// call receiving such a value is reported. Taint never crosses a function
// boundary and parameters are never sources.
package taint

import (
	"fmt"
	"maps"
	"strings"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultSources are calls that return untrusted input.
var DefaultSources = []string{
	"input",
	"raw_input",
	"sys.stdin.read",
	"sys.stdin.readline",
	"os.getenv",
	"os.environ.get",
}

// DefaultSinks are calls that are dangerous with untrusted arguments:
// dynamic evaluation, shell invocation and process spawning.
var DefaultSinks = []string{
	"eval",
	"exec",
	"compile",
	"os.system",
	"os.popen",
	"subprocess.*",
}

// matcher matches dotted callee names against exact names and `prefix.*`
// patterns.
type matcher struct {
	exact    map[string]bool
	prefixes []string
}

func newMatcher(patterns []string) matcher {
	m := matcher{exact: make(map[string]bool)}
	for _, p := range patterns {
		if strings.HasSuffix(p, ".*") {
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		m.exact[p] = true
	}
	return m
}

func (m matcher) match(name string) bool {
	if name == "" {
		return false
	}
	if m.exact[name] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Analyzer is the taint pass.
type Analyzer struct {
	sources matcher
	sinks   matcher
	budget  int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithSources replaces the source patterns.
func WithSources(patterns []string) Option {
	return func(a *Analyzer) {
		a.sources = newMatcher(patterns)
	}
}

// WithSinks replaces the sink patterns.
func WithSinks(patterns []string) Option {
	return func(a *Analyzer) {
		a.sinks = newMatcher(patterns)
	}
}

// WithBudget sets the visit budget.
func WithBudget(budget int) Option {
	return func(a *Analyzer) {
		a.budget = budget
	}
}

// New creates a taint pass with the default sources and sinks.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		sources: newMatcher(DefaultSources),
		sinks:   newMatcher(DefaultSinks),
		budget:  analyzer.DefaultBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements analyzer.Pass.
func (a *Analyzer) Name() string { return "taint" }

// Analyze implements analyzer.Pass.
func (a *Analyzer) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(a.budget, func(r *analyzer.Reporter) {
		v := &visitor{a: a, r: r, aliases: importAliases(tree.Root)}
		v.scope(tree.Root.Body)
	})
}

// importAliases maps names bound by imports to the dotted path they stand
// for, e.g. `from subprocess import run as go` maps go to subprocess.run.
func importAliases(root *syntax.Module) map[string]string {
	out := make(map[string]string)
	syntax.Inspect(root, func(n syntax.Node) bool {
		imp, ok := n.(*syntax.Import)
		if !ok {
			return true
		}
		for _, al := range imp.Names {
			bound := al.Bound(imp.From)
			switch {
			case imp.From && imp.Module != "" && !strings.HasPrefix(imp.Module, "."):
				out[bound] = imp.Module + "." + al.Name
			case !imp.From && al.AsName != "":
				out[bound] = al.Name
			}
		}
		return false
	})
	return out
}

// tainted is the set of tainted names of one scope. Keys are plain names or
// dotted attribute paths such as self.cmd.
type tainted map[string]bool

// union returns a new set holding the names tainted on any of the paths.
func union(paths ...tainted) tainted {
	out := make(tainted)
	for _, p := range paths {
		maps.Copy(out, p)
	}
	return out
}

type visitor struct {
	a       *Analyzer
	r       *analyzer.Reporter
	aliases map[string]string
	set     tainted
}

// canonical resolves the first segment of a dotted callee through the
// file's import aliases.
func (v *visitor) canonical(name string) string {
	head, rest, dotted := strings.Cut(name, ".")
	full, ok := v.aliases[head]
	if !ok {
		return name
	}
	if dotted {
		return full + "." + rest
	}
	return full
}

func (v *visitor) callee(c *syntax.Call) string {
	return v.canonical(syntax.CalleeName(c))
}

// scope analyzes a body with a fresh, empty taint set.
func (v *visitor) scope(body []syntax.Stmt) {
	saved := v.set
	v.set = make(tainted)
	v.body(body)
	v.set = saved
}

func (v *visitor) body(stmts []syntax.Stmt) {
	for _, s := range stmts {
		v.r.Guard(func() { v.stmt(s) })
	}
}

func (v *visitor) stmt(s syntax.Stmt) {
	v.r.Visit()
	switch n := s.(type) {
	case *syntax.FunctionDef:
		v.scan(n.Decorators...)
		for _, p := range n.Params {
			v.scan(p.Default)
		}
		v.scope(n.Body)
	case *syntax.ClassDef:
		v.scan(n.Decorators...)
		v.scan(n.Bases...)
		v.scope(n.Body)
	case *syntax.Assign:
		v.scan(n.Value)
		if n.Value == nil {
			return
		}
		for _, t := range n.Targets {
			v.flow(t, n.Value, true)
		}
	case *syntax.AugAssign:
		v.scan(n.Value)
		v.flow(n.Target, n.Value, false)
	case *syntax.ExprStmt:
		v.scan(n.Value)
	case *syntax.Return:
		v.scan(n.Value)
	case *syntax.Raise:
		v.scan(n.Exc, n.Cause)
	case *syntax.Assert:
		v.scan(n.Test, n.Msg)
	case *syntax.Delete:
		v.scan(n.Targets...)
		for _, t := range n.Targets {
			if key := syntax.DottedName(t); key != "" {
				delete(v.set, key)
			}
		}
	case *syntax.If:
		v.scan(n.Test)
		before := v.set
		v.branch(n.Body)
		taken := v.set
		v.set = before
		v.branch(n.Orelse)
		v.set = union(taken, v.set)
	case *syntax.While:
		v.scan(n.Test)
		v.loop(n.Body)
		v.body(n.Orelse)
	case *syntax.For:
		v.scan(n.Iter)
		v.flow(n.Target, n.Iter, false)
		v.loop(n.Body)
		v.body(n.Orelse)
	case *syntax.With:
		for _, it := range n.Items {
			v.scan(it.Context)
			if it.Target != nil {
				v.flow(it.Target, it.Context, false)
			}
		}
		v.body(n.Body)
	case *syntax.Try:
		// A handler may start after any statement of the try body.
		v.set = union(v.set)
		raised := union(v.set)
		for _, st := range n.Body {
			v.r.Guard(func() { v.stmt(st) })
			maps.Copy(raised, v.set)
		}
		v.body(n.Orelse)
		paths := []tainted{v.set}
		for _, h := range n.Handlers {
			v.set = union(raised)
			v.scan(h.Type)
			if h.Name != "" {
				delete(v.set, h.Name)
			}
			v.body(h.Body)
			paths = append(paths, v.set)
		}
		v.set = union(paths...)
		v.body(n.Finally)
	}
}

// branch analyzes a block that may or may not run, on a copy of the
// current set so the caller can merge it with the other paths.
func (v *visitor) branch(stmts []syntax.Stmt) {
	v.set = union(v.set)
	v.body(stmts)
}

// loop analyzes a loop body that may run zero or more times.
func (v *visitor) loop(stmts []syntax.Stmt) {
	before := v.set
	v.branch(stmts)
	v.set = union(before, v.set)
}

// flow applies an assignment of value to target. A strong update clears
// the taint of a target assigned an untainted value. Only a direct source
// call is a source; one nested in another expression propagates.
func (v *visitor) flow(target, value syntax.Expr, strong bool) {
	via := v.taintedRef(value)
	source := v.directSource(value)
	if via == "" && source == "" {
		if nested := v.sourceCall(value); nested != "" {
			via = nested + "()"
		}
	}

	for _, key := range targetKeys(target) {
		switch {
		case via != "":
			v.set[key.name] = true
			f := analyzer.Finding(models.RuleTaintPropagation, models.SeverityWarning, models.CategorySecurity, models.ConfidenceMedium,
				fmt.Sprintf("Tainted data from '%s' propagates into '%s'.", via, key.name))
			f.Symbol = key.name
			v.r.Report(f.At(key.pos.Line, key.pos.Column))
		case source != "":
			v.set[key.name] = true
			f := analyzer.Finding(models.RuleTaintSource, models.SeverityWarning, models.CategorySecurity, models.ConfidenceHigh,
				fmt.Sprintf("Variable '%s' receives untrusted input from '%s()'.", key.name, source))
			f.Symbol = key.name
			v.r.Report(f.At(key.pos.Line, key.pos.Column))
		case strong && !key.weak:
			delete(v.set, key.name)
		}
	}
}

type targetKey struct {
	name string
	pos  syntax.Pos
	weak bool
}

// targetKeys returns the taint keys an assignment target writes. Writing
// into a subscript taints its container without ever clearing it.
func targetKeys(t syntax.Expr) []targetKey {
	switch n := t.(type) {
	case *syntax.Name:
		return []targetKey{{name: n.ID, pos: n.Pos}}
	case *syntax.Attribute:
		if key := syntax.DottedName(n); key != "" {
			return []targetKey{{name: key, pos: n.Pos}}
		}
	case *syntax.Subscript:
		if key := syntax.DottedName(n.Value); key != "" {
			return []targetKey{{name: key, pos: n.Pos, weak: true}}
		}
	case *syntax.Collection:
		var out []targetKey
		for _, el := range n.Elts {
			out = append(out, targetKeys(el)...)
		}
		return out
	case *syntax.Starred:
		return targetKeys(n.Value)
	}
	return nil
}

// taintedRef returns the first tainted name or attribute path that e reads,
// or "". Lambda bodies are a function boundary and are not searched.
func (v *visitor) taintedRef(e syntax.Expr) string {
	found := ""
	if e == nil {
		return ""
	}
	syntax.Inspect(e, func(n syntax.Node) bool {
		if found != "" {
			return false
		}
		switch n := n.(type) {
		case *syntax.Lambda:
			return false
		case *syntax.Name:
			if v.set[n.ID] {
				found = n.ID
			}
		case *syntax.Attribute:
			if key := syntax.DottedName(n); key != "" && v.set[key] {
				found = key
				return false
			}
		}
		return found == ""
	})
	return found
}

// directSource returns the canonical name of e when e is itself a source
// call, or "".
func (v *visitor) directSource(e syntax.Expr) string {
	c, ok := e.(*syntax.Call)
	if !ok {
		return ""
	}
	if name := v.callee(c); v.a.sources.match(name) {
		return name
	}
	return ""
}

// sourceCall returns the canonical name of the first source call inside e.
func (v *visitor) sourceCall(e syntax.Expr) string {
	found := ""
	if e == nil {
		return ""
	}
	syntax.Inspect(e, func(n syntax.Node) bool {
		if found != "" {
			return false
		}
		switch n := n.(type) {
		case *syntax.Lambda:
			return false
		case *syntax.Call:
			if name := v.callee(n); v.a.sources.match(name) {
				found = name
				return false
			}
		}
		return true
	})
	return found
}

// scan reports sink calls inside the expressions and applies assignment
// expressions in evaluation order.
func (v *visitor) scan(exprs ...syntax.Expr) {
	for _, e := range exprs {
		if e == nil {
			continue
		}
		syntax.Inspect(e, func(n syntax.Node) bool {
			v.r.Visit()
			switch n := n.(type) {
			case *syntax.Lambda:
				saved := v.set
				v.set = make(tainted)
				v.scan(n.Body)
				v.set = saved
				return false
			case *syntax.NamedExpr:
				v.scan(n.Value)
				if n.Target != nil {
					v.flow(n.Target, n.Value, true)
				}
				return false
			case *syntax.Call:
				v.sink(n)
			}
			return true
		})
	}
}

func (v *visitor) sink(c *syntax.Call) {
	name := v.callee(c)
	if !v.a.sinks.match(name) {
		return
	}
	args := append([]syntax.Expr{}, c.Args...)
	for _, k := range c.Keywords {
		args = append(args, k.Value)
	}
	for _, arg := range args {
		via := v.taintedRef(arg)
		if via == "" {
			if src := v.sourceCall(arg); src != "" {
				via = src + "()"
			}
		}
		if via == "" {
			continue
		}
		f := analyzer.Finding(models.RuleTaintSinkReached, models.SeverityError, models.CategorySecurity, models.ConfidenceHigh,
			fmt.Sprintf("Tainted data from '%s' passed to dangerous sink '%s()'.", via, name))
		f.Symbol = strings.TrimSuffix(via, "()")
		v.r.Report(f.At(c.Line, c.Column))
		return
	}
}

// Package dfg implements the data-flow pass: definite-assignment and
// liveness tracking per scope. It reports reads of names with no visible
// binding, bindings that are never read, and assignments that shadow a
// name from an enclosing scope.
package dfg

import (
	"fmt"
	"strings"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/scope"
	"github.com/panbanda/sieve/pkg/syntax"
)

// Analyzer is the data-flow pass. Its vocabulary and ignore conventions are
// plain configuration so callers and tests can replace them.
type Analyzer struct {
	vocabulary     map[string]bool
	ignorePrefixes []string
	ignoreNames    map[string]bool
	budget         int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithVocabulary replaces the predeclared names.
func WithVocabulary(names []string) Option {
	return func(a *Analyzer) {
		a.vocabulary = toSet(names)
	}
}

// WithExtraNames adds predeclared names to the vocabulary.
func WithExtraNames(names []string) Option {
	return func(a *Analyzer) {
		for _, n := range names {
			a.vocabulary[n] = true
		}
	}
}

// WithIgnorePrefixes sets the prefixes that mark a binding as
// intentionally unused.
func WithIgnorePrefixes(prefixes []string) Option {
	return func(a *Analyzer) {
		a.ignorePrefixes = prefixes
	}
}

// WithIgnoreNames sets names that are never reported as unused.
func WithIgnoreNames(names []string) Option {
	return func(a *Analyzer) {
		a.ignoreNames = toSet(names)
	}
}

// WithBudget sets the visit budget.
func WithBudget(budget int) Option {
	return func(a *Analyzer) {
		a.budget = budget
	}
}

// New creates a data-flow pass with the Python vocabulary.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		vocabulary:     toSet(PythonBuiltins),
		ignorePrefixes: DefaultIgnorePrefixes,
		ignoreNames:    toSet(DefaultIgnoreNames),
		budget:         analyzer.DefaultBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Name implements analyzer.Pass.
func (a *Analyzer) Name() string { return "dfg" }

// Analyze implements analyzer.Pass.
func (a *Analyzer) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(a.budget, func(r *analyzer.Reporter) {
		v := &visitor{a: a, r: r, fileBound: boundNames(tree.Root)}
		v.module(tree.Root)
	})
}

func (a *Analyzer) ignored(name string) bool {
	if a.ignoreNames[name] {
		return true
	}
	for _, p := range a.ignorePrefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// frameKind extends scope kinds with the transient scopes of lambdas and
// comprehensions, which bind names but report nothing.
type frameKind int

const (
	frameModule frameKind = iota
	frameClass
	frameFunction
	frameLambda
	frameComprehension
)

type frame struct {
	kind     frameKind
	name     string
	parent   *frame
	bindings map[string]*scope.Binding
	order    []*scope.Binding
	used     map[string]bool
	eventual map[string]bool
	globals  map[string]bool
	nonlocal map[string]bool
	reported map[string]bool
	// wildcard is set when the scope runs `from m import *`.
	wildcard bool
}

func newFrame(kind frameKind, name string, parent *frame) *frame {
	return &frame{
		kind:     kind,
		name:     name,
		parent:   parent,
		bindings: make(map[string]*scope.Binding),
		used:     make(map[string]bool),
		eventual: make(map[string]bool),
		globals:  make(map[string]bool),
		nonlocal: make(map[string]bool),
		reported: make(map[string]bool),
	}
}

// deferred frames run after the enclosing scope has finished binding.
func (f *frame) deferred() bool {
	return f.kind == frameFunction || f.kind == frameLambda
}

func (f *frame) transient() bool {
	return f.kind == frameLambda || f.kind == frameComprehension
}

func (f *frame) declare(b scope.Binding) {
	if _, ok := f.bindings[b.Name]; ok {
		return
	}
	bb := b
	f.bindings[b.Name] = &bb
	f.order = append(f.order, &bb)
	f.eventual[b.Name] = true
}

func (f *frame) describe() string {
	switch f.kind {
	case frameModule:
		return "module scope"
	case frameClass:
		return fmt.Sprintf("class '%s'", f.name)
	default:
		return fmt.Sprintf("function '%s'", f.name)
	}
}

type visitor struct {
	a         *Analyzer
	r         *analyzer.Reporter
	top       *frame
	fileBound map[string]bool
}

func (v *visitor) push(kind frameKind, name string) *frame {
	v.top = newFrame(kind, name, v.top)
	return v.top
}

func (v *visitor) pop() {
	f := v.top
	v.top = f.parent
	if f.kind == frameFunction {
		v.reportUnused(f)
	}
}

// owner is the nearest frame that is not a lambda or comprehension.
func (v *visitor) owner() *frame {
	f := v.top
	for f.transient() && f.parent != nil {
		f = f.parent
	}
	return f
}

func (v *visitor) module(m *syntax.Module) {
	f := v.push(frameModule, "")
	v.prepass(f, m.Body)
	v.body(m.Body)
	v.pop()
}

func (v *visitor) body(stmts []syntax.Stmt) {
	for _, s := range stmts {
		v.r.Guard(func() { v.stmt(s) })
	}
}

// prepass hoists def, class and import names of a scope and records every
// name the scope binds anywhere, so forward references can be graded.
func (v *visitor) prepass(f *frame, stmts []syntax.Stmt) {
	for _, s := range stmts {
		syntax.Inspect(s, func(n syntax.Node) bool {
			v.r.Visit()
			switch n := n.(type) {
			case *syntax.FunctionDef:
				f.declare(scope.Binding{Name: n.Name, Kind: scope.BindFunction, Line: n.Line, Column: n.Column, Decorated: len(n.Decorators) > 0})
				return false
			case *syntax.ClassDef:
				f.declare(scope.Binding{Name: n.Name, Kind: scope.BindClass, Line: n.Line, Column: n.Column, Decorated: len(n.Decorators) > 0})
				return false
			case *syntax.Lambda:
				return false
			case *syntax.Import:
				if n.Wildcard {
					f.wildcard = true
				}
				for _, al := range n.Names {
					f.declare(scope.Binding{Name: al.Bound(n.From), Kind: scope.BindImport, Line: al.Line, Column: al.Column})
				}
			case *syntax.Assign:
				markEventual(f, n.Targets...)
			case *syntax.AugAssign:
				markEventual(f, n.Target)
			case *syntax.For:
				markEventual(f, n.Target)
			case *syntax.With:
				for _, it := range n.Items {
					markEventual(f, it.Target)
				}
			case *syntax.Try:
				for _, h := range n.Handlers {
					if h.Name != "" {
						f.eventual[h.Name] = true
					}
				}
			case *syntax.NamedExpr:
				if n.Target != nil {
					f.eventual[n.Target.ID] = true
				}
			}
			return true
		})
	}
}

func markEventual(f *frame, targets ...syntax.Expr) {
	for _, t := range targets {
		for _, n := range syntax.Targets(t) {
			f.eventual[n.ID] = true
		}
	}
}

// boundNames returns every name bound anywhere in the file.
func boundNames(root *syntax.Module) map[string]bool {
	out := make(map[string]bool)
	add := func(targets ...syntax.Expr) {
		for _, t := range targets {
			for _, n := range syntax.Targets(t) {
				out[n.ID] = true
			}
		}
	}
	addParams := func(params []syntax.Param) {
		for _, p := range params {
			out[p.Name] = true
		}
	}
	syntax.Inspect(root, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.FunctionDef:
			out[n.Name] = true
			addParams(n.Params)
		case *syntax.ClassDef:
			out[n.Name] = true
		case *syntax.Lambda:
			addParams(n.Params)
		case *syntax.Import:
			for _, al := range n.Names {
				out[al.Bound(n.From)] = true
			}
		case *syntax.Assign:
			add(n.Targets...)
		case *syntax.AugAssign:
			add(n.Target)
		case *syntax.For:
			add(n.Target)
		case *syntax.With:
			for _, it := range n.Items {
				add(it.Target)
			}
		case *syntax.Try:
			for _, h := range n.Handlers {
				out[h.Name] = true
			}
		case *syntax.Comprehension:
			for _, g := range n.Generators {
				add(g.Target)
			}
		case *syntax.NamedExpr:
			if n.Target != nil {
				out[n.Target.ID] = true
			}
		}
		return true
	})
	delete(out, "")
	return out
}

func (v *visitor) stmt(s syntax.Stmt) {
	v.r.Visit()
	switch n := s.(type) {
	case *syntax.FunctionDef:
		v.functionDef(n)
	case *syntax.ClassDef:
		v.reads(n.Decorators...)
		v.reads(n.Bases...)
		for _, k := range n.Keywords {
			v.read(k.Value)
		}
		f := v.push(frameClass, n.Name)
		v.prepass(f, n.Body)
		v.body(n.Body)
		v.pop()
	case *syntax.Assign:
		v.read(n.Annotation)
		v.read(n.Value)
		if n.Value == nil {
			// A bare annotation binds nothing.
			return
		}
		for _, t := range n.Targets {
			v.assignTarget(t)
		}
	case *syntax.AugAssign:
		v.read(n.Value)
		v.read(n.Target)
		v.assignTarget(n.Target)
	case *syntax.ExprStmt:
		v.read(n.Value)
	case *syntax.Return:
		v.read(n.Value)
	case *syntax.Raise:
		v.read(n.Exc)
		v.read(n.Cause)
	case *syntax.If:
		v.read(n.Test)
		v.body(n.Body)
		v.body(n.Orelse)
	case *syntax.While:
		v.read(n.Test)
		v.body(n.Body)
		v.body(n.Orelse)
	case *syntax.For:
		v.read(n.Iter)
		v.assignTarget(n.Target)
		v.body(n.Body)
		v.body(n.Orelse)
	case *syntax.Try:
		v.body(n.Body)
		for _, h := range n.Handlers {
			v.read(h.Type)
			if h.Name != "" {
				v.assign(&syntax.Name{Pos: h.NamePos, ID: h.Name})
			}
			v.body(h.Body)
		}
		v.body(n.Orelse)
		v.body(n.Finally)
	case *syntax.With:
		for _, it := range n.Items {
			v.read(it.Context)
			v.assignTarget(it.Target)
		}
		v.body(n.Body)
	case *syntax.Global:
		f := v.owner()
		for _, name := range n.Names {
			if n.Nonlocal {
				f.nonlocal[name] = true
			} else {
				f.globals[name] = true
			}
		}
	case *syntax.Delete:
		v.reads(n.Targets...)
	case *syntax.Assert:
		v.read(n.Test)
		v.read(n.Msg)
	case *syntax.UnknownStmt:
		for _, ref := range n.Refs {
			v.quietRead(ref.ID)
		}
	}
}

func (v *visitor) functionDef(n *syntax.FunctionDef) {
	v.reads(n.Decorators...)
	for _, p := range n.Params {
		v.read(p.Annotation)
		v.read(p.Default)
	}
	v.read(n.Returns)

	f := v.push(frameFunction, n.Name)
	for _, p := range n.Params {
		f.declare(scope.Binding{Name: p.Name, Kind: scope.BindParameter, Line: p.Line, Column: p.Column})
	}
	v.prepass(f, n.Body)
	v.body(n.Body)
	v.pop()
}

func (v *visitor) reads(exprs ...syntax.Expr) {
	for _, e := range exprs {
		v.read(e)
	}
}

// read visits an expression in load context.
func (v *visitor) read(e syntax.Expr) {
	if e == nil {
		return
	}
	v.r.Visit()
	switch n := e.(type) {
	case *syntax.Name:
		v.load(n)
	case *syntax.Lambda:
		for _, p := range n.Params {
			v.read(p.Default)
		}
		f := v.push(frameLambda, "lambda")
		for _, p := range n.Params {
			f.declare(scope.Binding{Name: p.Name, Kind: scope.BindParameter, Line: p.Line, Column: p.Column})
		}
		v.read(n.Body)
		v.pop()
	case *syntax.Comprehension:
		v.comprehension(n)
	case *syntax.NamedExpr:
		v.read(n.Value)
		if n.Target != nil {
			saved := v.top
			v.top = v.owner()
			v.assign(n.Target)
			v.top = saved
		}
	case *syntax.UnknownExpr:
		for _, ref := range n.Refs {
			v.quietRead(ref.ID)
		}
	default:
		for _, c := range syntax.Children(e) {
			if ce, ok := c.(syntax.Expr); ok {
				v.read(ce)
			}
		}
	}
}

func (v *visitor) comprehension(n *syntax.Comprehension) {
	if len(n.Generators) == 0 {
		v.reads(n.Elts...)
		return
	}
	// The first iterable is evaluated in the enclosing scope.
	v.read(n.Generators[0].Iter)
	v.push(frameComprehension, "comprehension")
	for i, g := range n.Generators {
		if i > 0 {
			v.read(g.Iter)
		}
		v.assignTarget(g.Target)
		v.reads(g.Ifs...)
	}
	v.reads(n.Elts...)
	v.pop()
}

// resolve finds the frame that binds name as seen from the top frame.
// Frames outside a deferred frame (a function or lambda body) count names
// they bind later too, since the body runs after they finish. Class frames
// are invisible from inside nested functions.
func (v *visitor) resolve(name string) *frame {
	crossed := false
	for f := v.top; f != nil; f = f.parent {
		if f.kind == frameClass && crossed {
			continue
		}
		if f.globals[name] {
			return v.moduleFrame()
		}
		if !f.nonlocal[name] {
			if _, ok := f.bindings[name]; ok {
				return f
			}
			if crossed && f.eventual[name] {
				return f
			}
		}
		if f.deferred() {
			crossed = true
		}
	}
	return nil
}

func (v *visitor) moduleFrame() *frame {
	f := v.top
	for f.parent != nil {
		f = f.parent
	}
	return f
}

func (v *visitor) quietRead(name string) {
	if f := v.resolve(name); f != nil {
		f.used[name] = true
	}
}

// load handles a read of a name.
func (v *visitor) load(n *syntax.Name) {
	if f := v.resolve(n.ID); f != nil {
		f.used[n.ID] = true
		return
	}
	if v.a.vocabulary[n.ID] || v.starImported() {
		return
	}

	owner := v.owner()
	if owner.reported[n.ID] {
		return
	}
	owner.reported[n.ID] = true

	confidence := models.ConfidenceHigh
	detail := "it is never assigned"
	switch {
	case v.boundLaterInScope(n.ID):
		confidence = models.ConfidenceLow
		detail = "it is assigned later in this scope"
	case v.fileBound[n.ID]:
		confidence = models.ConfidenceMedium
		detail = "it is only assigned in another scope"
	}

	f := analyzer.Finding(models.RuleUseBeforeAssign, models.SeverityWarning, models.CategoryLogic, confidence,
		fmt.Sprintf("Variable '%s' is used before assignment; %s.", n.ID, detail))
	f.Symbol = n.ID
	v.r.Report(f.At(n.Line, n.Column))
}

// starImported reports whether a visible scope has a wildcard import,
// which may supply any unresolved name.
func (v *visitor) starImported() bool {
	for f := v.top; f != nil; f = f.parent {
		if f.wildcard {
			return true
		}
	}
	return false
}

// boundLaterInScope reports whether the current scope, or a transient
// scope inside it, binds name somewhere.
func (v *visitor) boundLaterInScope(name string) bool {
	for f := v.top; f != nil; f = f.parent {
		if f.eventual[name] {
			return true
		}
		if !f.transient() {
			return false
		}
	}
	return false
}

func (v *visitor) assignTarget(t syntax.Expr) {
	if t == nil {
		return
	}
	for _, r := range syntax.TargetReads(t) {
		v.load(r)
	}
	for _, n := range syntax.Targets(t) {
		v.assign(n)
	}
}

// assign records a binding of n in the top frame.
func (v *visitor) assign(n *syntax.Name) {
	f := v.top
	switch {
	case f.globals[n.ID]:
		v.moduleFrame().declare(scope.Binding{Name: n.ID, Kind: scope.BindAssignment, Line: n.Line, Column: n.Column})
		return
	case f.nonlocal[n.ID]:
		for p := f.parent; p != nil; p = p.parent {
			if _, ok := p.bindings[n.ID]; ok && p.kind == frameFunction {
				p.used[n.ID] = true
				break
			}
		}
		return
	}
	if _, ok := f.bindings[n.ID]; ok {
		return
	}

	if f.kind == frameFunction {
		if outer := v.outerBinding(f, n.ID); outer != nil {
			sh := analyzer.Finding(models.RuleVariableShadowing, models.SeverityWarning, models.CategoryDesign, models.ConfidenceMedium,
				fmt.Sprintf("Variable '%s' shadows a name from the enclosing %s.", n.ID, outer.describe()))
			sh.Symbol = n.ID
			v.r.Report(sh.At(n.Line, n.Column))
		}
	}
	f.declare(scope.Binding{Name: n.ID, Kind: scope.BindAssignment, Line: n.Line, Column: n.Column})
}

// outerBinding finds an enclosing function or module frame that binds
// name. Class frames are not visible from function bodies.
func (v *visitor) outerBinding(f *frame, name string) *frame {
	for p := f.parent; p != nil; p = p.parent {
		if p.kind == frameClass || p.transient() {
			continue
		}
		if _, ok := p.bindings[name]; ok {
			return p
		}
		if p.eventual[name] {
			return p
		}
	}
	return nil
}

func (v *visitor) reportUnused(f *frame) {
	for _, b := range f.order {
		if f.used[b.Name] || f.reported[b.Name] || b.Decorated || v.a.ignored(b.Name) {
			continue
		}
		fd := analyzer.Finding(models.RuleUnusedVariable, models.SeverityWarning, models.CategoryMaintainability, models.ConfidenceMedium,
			unusedMessage(b))
		fd.Symbol = b.Name
		v.r.Report(fd.At(b.Line, b.Column))
	}
}

func unusedMessage(b *scope.Binding) string {
	switch b.Kind {
	case scope.BindParameter:
		return fmt.Sprintf("Parameter '%s' is never used.", b.Name)
	case scope.BindImport:
		return fmt.Sprintf("Imported name '%s' is never used.", b.Name)
	case scope.BindFunction:
		return fmt.Sprintf("Local function '%s' is never used.", b.Name)
	case scope.BindClass:
		return fmt.Sprintf("Local class '%s' is never used.", b.Name)
	default:
		return fmt.Sprintf("Variable '%s' is assigned but never used.", b.Name)
	}
}

// Package cfg implements the control-flow pass: local reachability checks
// that need no explicit graph. Every statement block is scanned once, so
// the cost is linear in the size of the tree.
package cfg

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultTerminalCalls are calls that never return to the caller.
var DefaultTerminalCalls = []string{"sys.exit", "os._exit", "os.abort", "exit", "quit"}

// Analyzer is the control-flow pass.
type Analyzer struct {
	terminalCalls map[string]bool
	budget        int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithTerminalCalls replaces the set of calls treated as terminal.
func WithTerminalCalls(names []string) Option {
	return func(a *Analyzer) {
		a.terminalCalls = make(map[string]bool, len(names))
		for _, n := range names {
			a.terminalCalls[n] = true
		}
	}
}

// WithBudget sets the visit budget.
func WithBudget(budget int) Option {
	return func(a *Analyzer) {
		a.budget = budget
	}
}

// New creates a control-flow pass.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{budget: analyzer.DefaultBudget}
	WithTerminalCalls(DefaultTerminalCalls)(a)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements analyzer.Pass.
func (a *Analyzer) Name() string { return "cfg" }

// Analyze implements analyzer.Pass.
func (a *Analyzer) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(a.budget, func(r *analyzer.Reporter) {
		w := &walker{a: a, r: r, dead: roaring.New()}
		w.block(tree.Root.Body, false)
	})
}

type walker struct {
	a    *Analyzer
	r    *analyzer.Reporter
	dead *roaring.Bitmap
}

// markDead records lines [from, to] and reports whether from was not
// already inside a reported region.
func (w *walker) markDead(from, to uint32) bool {
	if w.dead.Contains(from) {
		return false
	}
	if to < from {
		to = from
	}
	w.dead.AddRange(uint64(from), uint64(to)+1)
	return true
}

func (w *walker) block(body []syntax.Stmt, inFunc bool) {
	if inFunc {
		w.checkTerminal(body)
	}
	for _, s := range body {
		w.r.Guard(func() { w.stmt(s, inFunc) })
	}
}

func (w *walker) checkTerminal(body []syntax.Stmt) {
	for i, s := range body {
		kind := w.terminal(s)
		if kind == "" || i+1 >= len(body) {
			continue
		}
		first, last := body[i+1].Position(), body[len(body)-1].Position()
		if !w.markDead(first.Line, last.EndLine) {
			return
		}
		f := analyzer.Finding(models.RuleDeadAfterTerminal, models.SeverityWarning, models.CategoryLogic, models.ConfidenceHigh,
			fmt.Sprintf("Unreachable code after %s.", kind))
		w.r.Report(f.At(first.Line, first.Column).Spanning(last.EndLine))
		return
	}
}

// terminal describes s if control never continues past it, or returns "".
func (w *walker) terminal(s syntax.Stmt) string {
	switch n := s.(type) {
	case *syntax.Return:
		return "'return' statement"
	case *syntax.Raise:
		return "'raise' statement"
	case *syntax.Break:
		return "'break' statement"
	case *syntax.Continue:
		return "'continue' statement"
	case *syntax.ExprStmt:
		if call, ok := n.Value.(*syntax.Call); ok {
			if name := syntax.CalleeName(call); w.a.terminalCalls[name] {
				return fmt.Sprintf("call to '%s()'", name)
			}
		}
	case *syntax.If:
		if len(n.Orelse) > 0 && w.exitsBlock(n.Body) && w.exitsBlock(n.Orelse) {
			return "if/else whose branches all exit"
		}
	}
	return ""
}

func (w *walker) exitsBlock(body []syntax.Stmt) bool {
	for _, s := range body {
		if w.terminal(s) != "" {
			return true
		}
	}
	return false
}

func (w *walker) stmt(s syntax.Stmt, inFunc bool) {
	w.r.Visit()
	switch n := s.(type) {
	case *syntax.FunctionDef:
		w.block(n.Body, true)
	case *syntax.ClassDef:
		w.block(n.Body, false)
	case *syntax.If:
		w.ifStmt(n)
		w.block(n.Body, inFunc)
		w.block(n.Orelse, inFunc)
	case *syntax.While:
		w.whileStmt(n)
		w.block(n.Body, inFunc)
		w.block(n.Orelse, inFunc)
	default:
		for _, b := range syntax.Blocks(s) {
			w.block(b, inFunc)
		}
	}
}

func (w *walker) ifStmt(n *syntax.If) {
	switch {
	case syntax.IsFalseLiteral(n.Test) && len(n.Body) > 0:
		w.deadBranch(n.Body, "Condition is always false; this branch never executes.")
	case syntax.IsTrueLiteral(n.Test) && len(n.Orelse) > 0:
		w.deadBranch(n.Orelse, "Condition is always true; the alternative branch never executes.")
	}
}

func (w *walker) whileStmt(n *syntax.While) {
	if syntax.IsFalseLiteral(n.Test) && len(n.Body) > 0 {
		w.deadBranch(n.Body, "Loop condition is always false; the loop body never executes.")
		return
	}
	if !syntax.IsTrueLiteral(n.Test) || w.loopExits(n.Body) {
		return
	}
	if w.dead.Contains(n.Line) {
		return
	}
	f := analyzer.Finding(models.RuleInfiniteLoop, models.SeverityWarning, models.CategoryLogic, models.ConfidenceHigh,
		"Infinite loop: condition is always true and the body has no break, return or raise.")
	w.r.Report(f.At(n.Line, n.Column).Spanning(n.EndLine))
}

func (w *walker) deadBranch(body []syntax.Stmt, msg string) {
	first, last := body[0].Position(), body[len(body)-1].Position()
	if !w.markDead(first.Line, last.EndLine) {
		return
	}
	f := analyzer.Finding(models.RuleDeadBranchLiteral, models.SeverityWarning, models.CategoryLogic, models.ConfidenceMedium, msg)
	w.r.Report(f.At(first.Line, first.Column).Spanning(last.EndLine))
}

// loopExits reports whether anything in body can leave the loop. Nested
// loops and functions are included, which can only hide a finding.
func (w *walker) loopExits(body []syntax.Stmt) bool {
	exits := false
	for _, s := range body {
		syntax.Inspect(s, func(n syntax.Node) bool {
			if exits {
				return false
			}
			w.r.Visit()
			switch v := n.(type) {
			case *syntax.Break, *syntax.Return, *syntax.Raise, *syntax.Yield:
				exits = true
			case *syntax.Call:
				if w.a.terminalCalls[syntax.CalleeName(v)] {
					exits = true
				}
			}
			return !exits
		})
	}
	return exits
}

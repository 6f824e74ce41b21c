package metrics

import (
	"fmt"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultOpeners are calls returning a file object that must be closed.
var DefaultOpeners = []string{"open", "io.open", "codecs.open"}

// Resources reports file objects opened outside a with statement and never
// closed in the same scope. A file object that is returned, yielded,
// passed to a call or used as a with context is owned elsewhere and not
// reported.
type Resources struct {
	openers map[string]bool
	budget  int
}

// NewResources creates the resource pass.
func NewResources(opts ...Option) *Resources {
	s := newSettings(opts)
	r := &Resources{openers: make(map[string]bool), budget: s.budget}
	for _, name := range s.openers {
		r.openers[name] = true
	}
	return r
}

// Name implements analyzer.Pass.
func (res *Resources) Name() string { return "resources" }

// Analyze implements analyzer.Pass.
func (res *Resources) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil {
		return nil, nil
	}
	return analyzer.Run(res.budget, func(r *analyzer.Reporter) {
		res.scope(r, tree.Root.Body)
	})
}

type handle struct {
	name string
	pos  syntax.Pos
}

type fileScope struct {
	opened []handle
	seen   map[string]bool
	closed map[string]bool
}

func (res *Resources) scope(r *analyzer.Reporter, body []syntax.Stmt) {
	fs := &fileScope{seen: make(map[string]bool), closed: make(map[string]bool)}
	var nested [][]syntax.Stmt

	var visit func(stmts []syntax.Stmt)
	visit = func(stmts []syntax.Stmt) {
		for _, s := range stmts {
			r.Visit()
			switch n := s.(type) {
			case *syntax.FunctionDef:
				nested = append(nested, n.Body)
				continue
			case *syntax.ClassDef:
				nested = append(nested, n.Body)
				continue
			case *syntax.Assign:
				if call, ok := n.Value.(*syntax.Call); ok && res.openers[syntax.CalleeName(call)] {
					for _, t := range n.Targets {
						if name, ok := t.(*syntax.Name); ok && !fs.seen[name.ID] {
							fs.seen[name.ID] = true
							fs.opened = append(fs.opened, handle{name: name.ID, pos: name.Pos})
						}
					}
				}
			case *syntax.Return:
				fs.release(n.Value)
			case *syntax.With:
				for _, it := range n.Items {
					fs.release(it.Context)
				}
			}
			for _, c := range syntax.Children(s) {
				if e, ok := c.(syntax.Expr); ok {
					fs.scanCloses(e)
				}
			}
			for _, b := range syntax.Blocks(s) {
				visit(b)
			}
		}
	}
	visit(body)

	for _, h := range fs.opened {
		if fs.closed[h.name] {
			continue
		}
		f := analyzer.Finding(models.RuleFileNotClosed, models.SeverityWarning, models.CategoryResource, models.ConfidenceMedium,
			fmt.Sprintf("File object '%s' opened but never closed; use a with statement.", h.name))
		f.Symbol = h.name
		r.Report(f.At(h.pos.Line, h.pos.Column))
	}

	for _, b := range nested {
		res.scope(r, b)
	}
}

// release marks a handle whose ownership leaves the scope.
func (fs *fileScope) release(e syntax.Expr) {
	if name, ok := e.(*syntax.Name); ok {
		fs.closed[name.ID] = true
	}
}

func (fs *fileScope) scanCloses(e syntax.Expr) {
	syntax.Inspect(e, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.Call:
			if attr, ok := n.Func.(*syntax.Attribute); ok && attr.Attr == "close" {
				fs.release(attr.Value)
			}
			for _, a := range n.Args {
				fs.release(a)
			}
			for _, kw := range n.Keywords {
				fs.release(kw.Value)
			}
		case *syntax.Yield:
			fs.release(n.Value)
		}
		return true
	})
}

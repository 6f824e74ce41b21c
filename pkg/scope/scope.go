// Package scope builds the lexical scope tree of a file and resolves source
// lines to their enclosing function and class.
package scope

import (
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// Kind of a lexical scope.
type Kind string

const (
	KindModule   Kind = "module"
	KindClass    Kind = "class"
	KindFunction Kind = "function"
)

func (k Kind) String() string { return string(k) }

// Scope is one lexical region. The module scope is the root and has no
// parent and an empty name.
type Scope struct {
	ID       int      `json:"id"`
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name,omitempty"`
	ParentID int      `json:"parent_id"`
	Start    uint32   `json:"start"`
	End      uint32   `json:"end"`
	Parent   *Scope   `json:"-"`
	Children []*Scope `json:"-"`
}

// Contains reports whether line lies within the scope's span.
func (s *Scope) Contains(line uint32) bool {
	return line >= s.Start && line <= s.End
}

// Qualified returns the dotted path of named scopes, e.g. "Cls.method".
func (s *Scope) Qualified() string {
	if s.Kind == KindModule {
		return ""
	}
	parent := ""
	if s.Parent != nil {
		parent = s.Parent.Qualified()
	}
	if parent == "" {
		return s.Name
	}
	return parent + "." + s.Name
}

// Tree is the scope tree of one file. It is immutable once built.
type Tree struct {
	Root   *Scope
	Scopes []*Scope
}

// Build walks the syntax tree once, opening a scope for every function and
// class body. A tree without a root yields only the module scope.
func Build(tree *syntax.Tree) *Tree {
	root := &Scope{ID: 0, Kind: KindModule, ParentID: -1, Start: 1}
	t := &Tree{Root: root, Scopes: []*Scope{root}}
	if tree == nil || tree.Root == nil {
		root.End = uint32(len(linesOf(tree)))
		return t
	}
	root.End = tree.Root.EndLine
	if n := uint32(len(tree.Lines())); n > root.End {
		root.End = n
	}

	b := &builder{tree: t, stack: []*Scope{root}}
	b.stmts(tree.Root.Body)
	return t
}

func linesOf(tree *syntax.Tree) []string {
	if tree == nil {
		return nil
	}
	return tree.Lines()
}

type builder struct {
	tree  *Tree
	stack []*Scope
}

func (b *builder) open(kind Kind, name string, pos syntax.Pos) *Scope {
	parent := b.stack[len(b.stack)-1]
	s := &Scope{
		ID:       len(b.tree.Scopes),
		Kind:     kind,
		Name:     name,
		ParentID: parent.ID,
		Start:    pos.Line,
		End:      pos.EndLine,
		Parent:   parent,
	}
	parent.Children = append(parent.Children, s)
	b.tree.Scopes = append(b.tree.Scopes, s)
	b.stack = append(b.stack, s)
	return s
}

func (b *builder) close() {
	b.stack = b.stack[:len(b.stack)-1]
}

func (b *builder) stmts(body []syntax.Stmt) {
	for _, s := range body {
		b.stmt(s)
	}
}

func (b *builder) stmt(s syntax.Stmt) {
	switch n := s.(type) {
	case *syntax.FunctionDef:
		b.open(KindFunction, n.Name, n.Pos)
		b.stmts(n.Body)
		b.close()
	case *syntax.ClassDef:
		b.open(KindClass, n.Name, n.Pos)
		b.stmts(n.Body)
		b.close()
	default:
		for _, block := range syntax.Blocks(s) {
			b.stmts(block)
		}
	}
}

// Innermost returns the deepest scope whose span contains line.
func (t *Tree) Innermost(line uint32) *Scope {
	cur := t.Root
	for {
		next := (*Scope)(nil)
		for _, c := range cur.Children {
			if c.Contains(line) {
				next = c
				break
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// Resolve returns the function and class enclosing line. The function is
// the innermost enclosing function scope, so a method body resolves to the
// method; the class is the innermost enclosing class on the same chain.
// Lines outside any function or class resolve to the module (both nil).
func (t *Tree) Resolve(line uint32) models.ScopeRef {
	var ref models.ScopeRef
	for s := t.Innermost(line); s != nil && s.Kind != KindModule; s = s.Parent {
		name := s.Name
		switch s.Kind {
		case KindFunction:
			if ref.Function == nil {
				ref.Function = &name
			}
		case KindClass:
			if ref.Class == nil {
				ref.Class = &name
			}
		}
	}
	return ref
}

package syntax

import (
	"math/big"
	"strings"
)

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	addE := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				out = append(out, e)
			}
		}
	}
	addS := func(ss []Stmt) {
		for _, s := range ss {
			out = append(out, s)
		}
	}
	addParams := func(ps []Param) {
		for _, p := range ps {
			addE(p.Annotation, p.Default)
		}
	}

	switch n := n.(type) {
	case *Module:
		addS(n.Body)
	case *FunctionDef:
		addE(n.Decorators...)
		addParams(n.Params)
		addE(n.Returns)
		addS(n.Body)
	case *ClassDef:
		addE(n.Decorators...)
		addE(n.Bases...)
		for _, k := range n.Keywords {
			addE(k.Value)
		}
		addS(n.Body)
	case *Assign:
		addE(n.Targets...)
		addE(n.Annotation, n.Value)
	case *AugAssign:
		addE(n.Target, n.Value)
	case *ExprStmt:
		addE(n.Value)
	case *Return:
		addE(n.Value)
	case *Raise:
		addE(n.Exc, n.Cause)
	case *If:
		addE(n.Test)
		addS(n.Body)
		addS(n.Orelse)
	case *While:
		addE(n.Test)
		addS(n.Body)
		addS(n.Orelse)
	case *For:
		addE(n.Target, n.Iter)
		addS(n.Body)
		addS(n.Orelse)
	case *Try:
		addS(n.Body)
		for _, h := range n.Handlers {
			addE(h.Type)
			addS(h.Body)
		}
		addS(n.Orelse)
		addS(n.Finally)
	case *With:
		for _, it := range n.Items {
			addE(it.Context, it.Target)
		}
		addS(n.Body)
	case *Delete:
		addE(n.Targets...)
	case *Assert:
		addE(n.Test, n.Msg)
	case *UnknownStmt:
		for _, r := range n.Refs {
			out = append(out, r)
		}
	case *Attribute:
		addE(n.Value)
	case *Call:
		addE(n.Func)
		addE(n.Args...)
		for _, k := range n.Keywords {
			addE(k.Value)
		}
	case *BinOp:
		addE(n.Left, n.Right)
	case *BoolOp:
		addE(n.Values...)
	case *Compare:
		addE(n.Operands...)
	case *UnaryOp:
		addE(n.Operand)
	case *Collection:
		addE(n.Elts...)
	case *Subscript:
		addE(n.Value)
		addE(n.Index...)
	case *Lambda:
		addParams(n.Params)
		addE(n.Body)
	case *Comprehension:
		for _, g := range n.Generators {
			addE(g.Iter, g.Target)
			addE(g.Ifs...)
		}
		addE(n.Elts...)
	case *IfExp:
		addE(n.Body, n.Test, n.Orelse)
	case *NamedExpr:
		if n.Target != nil {
			out = append(out, n.Target)
		}
		addE(n.Value)
	case *Yield:
		addE(n.Value)
	case *Await:
		addE(n.Value)
	case *Starred:
		addE(n.Value)
	case *FString:
		addE(n.Values...)
	case *UnknownExpr:
		for _, r := range n.Refs {
			out = append(out, r)
		}
	}
	return out
}

// Inspect walks the tree rooted at n in depth-first order, calling fn for
// each node. If fn returns false the node's children are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// Blocks returns the statement blocks directly nested in s.
func Blocks(s Stmt) [][]Stmt {
	switch s := s.(type) {
	case *Module:
		return [][]Stmt{s.Body}
	case *FunctionDef:
		return [][]Stmt{s.Body}
	case *ClassDef:
		return [][]Stmt{s.Body}
	case *If:
		return nonEmpty(s.Body, s.Orelse)
	case *While:
		return nonEmpty(s.Body, s.Orelse)
	case *For:
		return nonEmpty(s.Body, s.Orelse)
	case *With:
		return [][]Stmt{s.Body}
	case *Try:
		blocks := [][]Stmt{s.Body}
		for _, h := range s.Handlers {
			blocks = append(blocks, h.Body)
		}
		return append(blocks, nonEmpty(s.Orelse, s.Finally)...)
	}
	return nil
}

func nonEmpty(blocks ...[]Stmt) [][]Stmt {
	var out [][]Stmt
	for _, b := range blocks {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// DottedName renders a Name or Attribute chain such as `os.path.join`.
// It returns "" for any other expression.
func DottedName(e Expr) string {
	var parts []string
	for {
		switch n := e.(type) {
		case *Name:
			parts = append(parts, n.ID)
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, ".")
		case *Attribute:
			parts = append(parts, n.Attr)
			e = n.Value
		default:
			return ""
		}
	}
}

// CalleeName returns the dotted name of the called function, or "".
func CalleeName(c *Call) string {
	return DottedName(c.Func)
}

// Refs returns the names read by e, in source order. Names bound inside
// lambdas and comprehensions are still reported; callers needing exact
// binding rules walk the expression themselves.
func Refs(e Expr) []*Name {
	var out []*Name
	if e == nil {
		return nil
	}
	Inspect(e, func(n Node) bool {
		if nm, ok := n.(*Name); ok {
			out = append(out, nm)
		}
		return true
	})
	return out
}

// Targets returns the names bound by an assignment target, unpacking
// tuples, lists and starred elements. Attribute and subscript targets bind
// nothing.
func Targets(e Expr) []*Name {
	switch t := e.(type) {
	case *Name:
		return []*Name{t}
	case *Collection:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, Targets(el)...)
		}
		return out
	case *Starred:
		return Targets(t.Value)
	}
	return nil
}

// TargetReads returns the names an assignment target reads rather than
// binds: the object of `a.b = ...` and the operands of `a[i] = ...`.
func TargetReads(e Expr) []*Name {
	switch t := e.(type) {
	case *Attribute:
		return Refs(t.Value)
	case *Subscript:
		out := Refs(t.Value)
		for _, ix := range t.Index {
			out = append(out, Refs(ix)...)
		}
		return out
	case *Collection:
		var out []*Name
		for _, el := range t.Elts {
			out = append(out, TargetReads(el)...)
		}
		return out
	case *Starred:
		return TargetReads(t.Value)
	}
	return nil
}

// IsTrueLiteral reports whether e is a literal that is always truthy
// (True or a non-zero integer).
func IsTrueLiteral(e Expr) bool {
	c, ok := e.(*Constant)
	if !ok {
		return false
	}
	switch c.Kind {
	case ConstTrue:
		return true
	case ConstInt:
		nonZero, ok := intTruth(c.Value)
		return ok && nonZero
	}
	return false
}

// IsFalseLiteral reports whether e is a literal that is always falsy
// (False, None or zero).
func IsFalseLiteral(e Expr) bool {
	c, ok := e.(*Constant)
	if !ok {
		return false
	}
	switch c.Kind {
	case ConstFalse, ConstNone:
		return true
	case ConstInt:
		nonZero, ok := intTruth(c.Value)
		return ok && !nonZero
	}
	return false
}

// intTruth parses an integer literal in any base, imaginary suffix
// included. ok is false when the text is not a recognizable integer.
func intTruth(text string) (nonZero, ok bool) {
	v := strings.ReplaceAll(text, "_", "")
	v = strings.TrimRight(v, "jJ")
	n, ok := new(big.Int).SetString(v, 0)
	if !ok {
		return false, false
	}
	return n.Sign() != 0, true
}

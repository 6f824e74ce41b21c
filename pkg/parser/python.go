package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/sieve/pkg/syntax"
)

// lowerer converts a tree-sitter Python CST into a syntax tree.
type lowerer struct {
	source   []byte
	maxDepth int
	depth    int
}

func (l *lowerer) pos(n *sitter.Node) syntax.Pos {
	start, end := n.StartPoint(), n.EndPoint()
	return syntax.Pos{
		Line:    start.Row + 1,
		Column:  start.Column + 1,
		EndLine: end.Row + 1,
	}
}

func (l *lowerer) text(n *sitter.Node) string {
	return n.Content(l.source)
}

// enter increments the depth and reports whether the bound still allows
// descending into n.
func (l *lowerer) enter() bool {
	l.depth++
	return l.depth <= l.maxDepth
}

func (l *lowerer) leave() {
	l.depth--
}

// refs collects every identifier below n without recursion.
func (l *lowerer) refs(n *sitter.Node) []*syntax.Name {
	var out []*syntax.Name
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type() == "identifier" {
			out = append(out, &syntax.Name{Pos: l.pos(cur), ID: l.text(cur)})
			continue
		}
		for i := int(cur.NamedChildCount()) - 1; i >= 0; i-- {
			if c := cur.NamedChild(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func hasKeyword(n *sitter.Node, keyword string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == keyword {
			return true
		}
	}
	return false
}

func (l *lowerer) module(n *sitter.Node) *syntax.Module {
	return &syntax.Module{Pos: l.pos(n), Body: l.stmts(namedChildren(n))}
}

func (l *lowerer) block(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}
	if n.Type() != "block" {
		if s := l.stmt(n); s != nil {
			return []syntax.Stmt{s}
		}
		return nil
	}
	return l.stmts(namedChildren(n))
}

func (l *lowerer) stmts(nodes []*sitter.Node) []syntax.Stmt {
	out := make([]syntax.Stmt, 0, len(nodes))
	for _, c := range nodes {
		if s := l.stmt(c); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l *lowerer) stmt(n *sitter.Node) syntax.Stmt {
	if n.Type() == "comment" {
		return nil
	}
	defer l.leave()
	if !l.enter() {
		return &syntax.UnknownStmt{Pos: l.pos(n), Kind: n.Type(), Refs: l.refs(n)}
	}

	p := l.pos(n)
	switch n.Type() {
	case "expression_statement":
		return l.expressionStatement(n)
	case "return_statement":
		var value syntax.Expr
		if kids := namedChildren(n); len(kids) > 0 {
			value = l.exprList(kids)
		}
		return &syntax.Return{Pos: p, Value: value}
	case "raise_statement":
		cause := n.ChildByFieldName("cause")
		r := &syntax.Raise{Pos: p, Cause: l.optExpr(cause)}
		for _, c := range namedChildren(n) {
			if !sameNode(c, cause) {
				r.Exc = l.expr(c)
				break
			}
		}
		return r
	case "pass_statement":
		return &syntax.Pass{Pos: p}
	case "break_statement":
		return &syntax.Break{Pos: p}
	case "continue_statement":
		return &syntax.Continue{Pos: p}
	case "if_statement":
		return l.ifStatement(n)
	case "while_statement":
		return &syntax.While{
			Pos:    p,
			Test:   l.expr(n.ChildByFieldName("condition")),
			Body:   l.block(n.ChildByFieldName("body")),
			Orelse: l.elseBody(n.ChildByFieldName("alternative")),
		}
	case "for_statement":
		return &syntax.For{
			Pos:    p,
			Target: l.expr(n.ChildByFieldName("left")),
			Iter:   l.expr(n.ChildByFieldName("right")),
			Body:   l.block(n.ChildByFieldName("body")),
			Orelse: l.elseBody(n.ChildByFieldName("alternative")),
			Async:  hasKeyword(n, "async"),
		}
	case "try_statement":
		return l.tryStatement(n)
	case "with_statement":
		return l.withStatement(n)
	case "function_definition":
		return l.functionDef(n, nil)
	case "class_definition":
		return l.classDef(n, nil)
	case "decorated_definition":
		return l.decorated(n)
	case "import_statement":
		return &syntax.Import{Pos: p, Names: l.aliases(namedChildren(n), nil)}
	case "import_from_statement", "future_import_statement":
		return l.importFrom(n)
	case "global_statement", "nonlocal_statement":
		g := &syntax.Global{Pos: p, Nonlocal: n.Type() == "nonlocal_statement"}
		for _, c := range namedChildren(n) {
			if c.Type() == "identifier" {
				g.Names = append(g.Names, l.text(c))
			}
		}
		return g
	case "delete_statement":
		d := &syntax.Delete{Pos: p}
		for _, c := range namedChildren(n) {
			if c.Type() == "expression_list" {
				for _, e := range namedChildren(c) {
					d.Targets = append(d.Targets, l.expr(e))
				}
				continue
			}
			d.Targets = append(d.Targets, l.expr(c))
		}
		return d
	case "assert_statement":
		kids := namedChildren(n)
		a := &syntax.Assert{Pos: p}
		if len(kids) > 0 {
			a.Test = l.expr(kids[0])
		}
		if len(kids) > 1 {
			a.Msg = l.expr(kids[1])
		}
		return a
	default:
		return &syntax.UnknownStmt{Pos: p, Kind: n.Type(), Refs: l.refs(n)}
	}
}

func (l *lowerer) expressionStatement(n *sitter.Node) syntax.Stmt {
	p := l.pos(n)
	kids := namedChildren(n)
	if len(kids) == 1 {
		switch kids[0].Type() {
		case "assignment":
			return l.assignment(kids[0])
		case "augmented_assignment":
			c := kids[0]
			op := ""
			if o := c.ChildByFieldName("operator"); o != nil {
				op = l.text(o)
			}
			return &syntax.AugAssign{
				Pos:    p,
				Target: l.expr(c.ChildByFieldName("left")),
				Op:     op,
				Value:  l.expr(c.ChildByFieldName("right")),
			}
		}
	}
	return &syntax.ExprStmt{Pos: p, Value: l.exprList(kids)}
}

func (l *lowerer) assignment(n *sitter.Node) syntax.Stmt {
	a := &syntax.Assign{
		Pos:        l.pos(n),
		Annotation: l.optExpr(n.ChildByFieldName("type")),
	}
	cur := n
	for {
		a.Targets = append(a.Targets, l.expr(cur.ChildByFieldName("left")))
		right := cur.ChildByFieldName("right")
		if right == nil {
			return a
		}
		if right.Type() != "assignment" {
			a.Value = l.expr(right)
			return a
		}
		cur = right
	}
}

func (l *lowerer) ifStatement(n *sitter.Node) syntax.Stmt {
	root := &syntax.If{
		Pos:  l.pos(n),
		Test: l.expr(n.ChildByFieldName("condition")),
		Body: l.block(n.ChildByFieldName("consequence")),
	}
	tail := root
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "elif_clause":
			elif := &syntax.If{
				Pos:  l.pos(c),
				Test: l.expr(c.ChildByFieldName("condition")),
				Body: l.block(c.ChildByFieldName("consequence")),
				Elif: true,
			}
			tail.Orelse = []syntax.Stmt{elif}
			tail = elif
		case "else_clause":
			tail.Orelse = l.block(c.ChildByFieldName("body"))
		}
	}
	return root
}

func (l *lowerer) elseBody(n *sitter.Node) []syntax.Stmt {
	if n == nil {
		return nil
	}
	if body := n.ChildByFieldName("body"); body != nil {
		return l.block(body)
	}
	for _, c := range namedChildren(n) {
		if c.Type() == "block" {
			return l.block(c)
		}
	}
	return nil
}

func (l *lowerer) tryStatement(n *sitter.Node) syntax.Stmt {
	t := &syntax.Try{Pos: l.pos(n), Body: l.block(n.ChildByFieldName("body"))}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "except_clause", "except_group_clause":
			t.Handlers = append(t.Handlers, l.exceptClause(c))
		case "else_clause":
			t.Orelse = l.elseBody(c)
		case "finally_clause":
			t.Finally = l.elseBody(c)
		}
	}
	return t
}

func (l *lowerer) exceptClause(n *sitter.Node) syntax.ExceptHandler {
	h := syntax.ExceptHandler{Pos: l.pos(n)}
	var parts []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "block" {
			h.Body = l.block(c)
			continue
		}
		parts = append(parts, c)
	}
	if len(parts) == 0 {
		return h
	}
	if parts[0].Type() == "as_pattern" {
		kids := namedChildren(parts[0])
		if len(kids) > 0 {
			h.Type = l.expr(kids[0])
		}
		if alias := parts[0].ChildByFieldName("alias"); alias != nil {
			h.Name, h.NamePos = l.identIn(alias)
		}
		return h
	}
	h.Type = l.expr(parts[0])
	if len(parts) > 1 {
		h.Name, h.NamePos = l.identIn(parts[1])
	}
	return h
}

// identIn returns the first identifier at or below n.
func (l *lowerer) identIn(n *sitter.Node) (string, syntax.Pos) {
	if n.Type() == "identifier" {
		return l.text(n), l.pos(n)
	}
	for _, c := range namedChildren(n) {
		if name, p := l.identIn(c); name != "" {
			return name, p
		}
	}
	return "", syntax.Pos{}
}

func (l *lowerer) withStatement(n *sitter.Node) syntax.Stmt {
	w := &syntax.With{
		Pos:   l.pos(n),
		Body:  l.block(n.ChildByFieldName("body")),
		Async: hasKeyword(n, "async"),
	}
	var items []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "with_clause" {
			items = append(items, namedChildren(c)...)
		}
	}
	for _, it := range items {
		if it.Type() != "with_item" {
			continue
		}
		value := it.ChildByFieldName("value")
		if value == nil {
			continue
		}
		item := syntax.WithItem{}
		if value.Type() == "as_pattern" {
			kids := namedChildren(value)
			if len(kids) > 0 {
				item.Context = l.expr(kids[0])
			}
			if alias := value.ChildByFieldName("alias"); alias != nil {
				item.Target = l.target(alias)
			}
		} else {
			item.Context = l.expr(value)
			if alias := it.ChildByFieldName("alias"); alias != nil {
				item.Target = l.target(alias)
			}
		}
		w.Items = append(w.Items, item)
	}
	return w
}

// target lowers an assignment target, unwrapping as_pattern_target.
func (l *lowerer) target(n *sitter.Node) syntax.Expr {
	if n.Type() == "as_pattern_target" {
		if kids := namedChildren(n); len(kids) > 0 {
			return l.expr(kids[0])
		}
	}
	return l.expr(n)
}

func (l *lowerer) functionDef(n *sitter.Node, decorators []syntax.Expr) syntax.Stmt {
	fn := &syntax.FunctionDef{
		Pos:        l.pos(n),
		Decorators: decorators,
		Returns:    l.optExpr(n.ChildByFieldName("return_type")),
		Async:      hasKeyword(n, "async"),
	}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = l.text(name)
	}
	fn.Params = l.params(n.ChildByFieldName("parameters"))
	fn.Body = l.block(n.ChildByFieldName("body"))
	return fn
}

func (l *lowerer) classDef(n *sitter.Node, decorators []syntax.Expr) syntax.Stmt {
	cls := &syntax.ClassDef{Pos: l.pos(n), Decorators: decorators}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = l.text(name)
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		cls.Bases, cls.Keywords = l.arguments(supers)
	}
	cls.Body = l.block(n.ChildByFieldName("body"))
	return cls
}

func (l *lowerer) decorated(n *sitter.Node) syntax.Stmt {
	var decorators []syntax.Expr
	for _, c := range namedChildren(n) {
		if c.Type() != "decorator" {
			continue
		}
		if kids := namedChildren(c); len(kids) > 0 {
			decorators = append(decorators, l.expr(kids[0]))
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return &syntax.UnknownStmt{Pos: l.pos(n), Kind: n.Type(), Refs: l.refs(n)}
	}
	var s syntax.Stmt
	switch def.Type() {
	case "function_definition":
		s = l.functionDef(def, decorators)
	case "class_definition":
		s = l.classDef(def, decorators)
	default:
		return &syntax.UnknownStmt{Pos: l.pos(n), Kind: def.Type(), Refs: l.refs(n)}
	}
	// Decorated definitions start at the first decorator.
	switch d := s.(type) {
	case *syntax.FunctionDef:
		d.Pos.Line, d.Pos.Column = l.pos(n).Line, l.pos(n).Column
	case *syntax.ClassDef:
		d.Pos.Line, d.Pos.Column = l.pos(n).Line, l.pos(n).Column
	}
	return s
}

func (l *lowerer) importFrom(n *sitter.Node) syntax.Stmt {
	imp := &syntax.Import{Pos: l.pos(n), From: true}
	module := n.ChildByFieldName("module_name")
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
	} else if module != nil {
		imp.Module = l.text(module)
	}
	var rest []*sitter.Node
	for _, c := range namedChildren(n) {
		if sameNode(c, module) {
			continue
		}
		if c.Type() == "wildcard_import" {
			imp.Wildcard = true
			continue
		}
		rest = append(rest, c)
	}
	imp.Names = l.aliases(rest, module)
	return imp
}

func (l *lowerer) aliases(nodes []*sitter.Node, skip *sitter.Node) []syntax.Alias {
	var out []syntax.Alias
	for _, c := range nodes {
		if sameNode(c, skip) {
			continue
		}
		switch c.Type() {
		case "dotted_name", "identifier":
			out = append(out, syntax.Alias{Pos: l.pos(c), Name: l.text(c)})
		case "aliased_import":
			a := syntax.Alias{Pos: l.pos(c)}
			if name := c.ChildByFieldName("name"); name != nil {
				a.Name = l.text(name)
			}
			if alias := c.ChildByFieldName("alias"); alias != nil {
				a.AsName = l.text(alias)
			}
			out = append(out, a)
		}
	}
	return out
}

func (l *lowerer) params(n *sitter.Node) []syntax.Param {
	var out []syntax.Param
	for _, c := range namedChildren(n) {
		if p, ok := l.param(c); ok {
			out = append(out, p)
		}
	}
	return out
}

func (l *lowerer) param(n *sitter.Node) (syntax.Param, bool) {
	switch n.Type() {
	case "identifier":
		return syntax.Param{Pos: l.pos(n), Name: l.text(n)}, true
	case "default_parameter", "typed_default_parameter":
		name := n.ChildByFieldName("name")
		if name == nil {
			return syntax.Param{}, false
		}
		p, ok := l.param(name)
		p.Default = l.optExpr(n.ChildByFieldName("value"))
		p.Annotation = l.optExpr(n.ChildByFieldName("type"))
		return p, ok
	case "typed_parameter":
		for _, c := range namedChildren(n) {
			if c.Type() == "type" {
				continue
			}
			p, ok := l.param(c)
			p.Annotation = l.optExpr(n.ChildByFieldName("type"))
			return p, ok
		}
	case "list_splat_pattern", "dictionary_splat_pattern":
		name, pos := l.identIn(n)
		if name == "" {
			return syntax.Param{}, false
		}
		kind := syntax.ParamVarArgs
		if n.Type() == "dictionary_splat_pattern" {
			kind = syntax.ParamKwArgs
		}
		return syntax.Param{Pos: pos, Name: name, Kind: kind}, true
	}
	return syntax.Param{}, false
}

func (l *lowerer) arguments(n *sitter.Node) ([]syntax.Expr, []syntax.Keyword) {
	var args []syntax.Expr
	var kws []syntax.Keyword
	if n.Type() == "generator_expression" {
		return []syntax.Expr{l.expr(n)}, nil
	}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "keyword_argument":
			kw := syntax.Keyword{Pos: l.pos(c), Value: l.optExpr(c.ChildByFieldName("value"))}
			if name := c.ChildByFieldName("name"); name != nil {
				kw.Name = l.text(name)
			}
			kws = append(kws, kw)
		case "dictionary_splat":
			var value syntax.Expr
			if kids := namedChildren(c); len(kids) > 0 {
				value = l.expr(kids[0])
			}
			kws = append(kws, syntax.Keyword{Pos: l.pos(c), Value: value})
		default:
			args = append(args, l.expr(c))
		}
	}
	return args, kws
}

func (l *lowerer) optExpr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return nil
	}
	return l.expr(n)
}

// exprList lowers one or more comma-separated expressions; several become
// a tuple.
func (l *lowerer) exprList(nodes []*sitter.Node) syntax.Expr {
	if len(nodes) == 1 {
		return l.expr(nodes[0])
	}
	var elts []syntax.Expr
	for _, c := range nodes {
		elts = append(elts, l.expr(c))
	}
	p := syntax.Pos{}
	if len(nodes) > 0 {
		p = l.pos(nodes[0])
		p.EndLine = l.pos(nodes[len(nodes)-1]).EndLine
	}
	return &syntax.Collection{Pos: p, Kind: syntax.CollTuple, Elts: elts}
}

func (l *lowerer) collection(n *sitter.Node, kind syntax.CollectionKind) syntax.Expr {
	c := &syntax.Collection{Pos: l.pos(n), Kind: kind}
	for _, k := range namedChildren(n) {
		c.Elts = append(c.Elts, l.expr(k))
	}
	return c
}

func (l *lowerer) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return &syntax.UnknownExpr{Kind: "missing"}
	}
	defer l.leave()
	if !l.enter() {
		return &syntax.UnknownExpr{Pos: l.pos(n), Kind: n.Type(), Refs: l.refs(n)}
	}

	p := l.pos(n)
	switch n.Type() {
	case "identifier":
		return &syntax.Name{Pos: p, ID: l.text(n)}
	case "attribute":
		a := &syntax.Attribute{Pos: p, Value: l.expr(n.ChildByFieldName("object"))}
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			a.Attr = l.text(attr)
		}
		return a
	case "call":
		c := &syntax.Call{Pos: p, Func: l.expr(n.ChildByFieldName("function"))}
		if args := n.ChildByFieldName("arguments"); args != nil {
			c.Args, c.Keywords = l.arguments(args)
		}
		return c
	case "binary_operator":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &syntax.BinOp{
			Pos:   p,
			Left:  l.expr(n.ChildByFieldName("left")),
			Op:    op,
			Right: l.expr(n.ChildByFieldName("right")),
		}
	case "boolean_operator":
		op := "and"
		if o := n.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &syntax.BoolOp{
			Pos:    p,
			Op:     op,
			Values: []syntax.Expr{l.expr(n.ChildByFieldName("left")), l.expr(n.ChildByFieldName("right"))},
		}
	case "comparison_operator":
		cmp := &syntax.Compare{Pos: p}
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil || c.Type() == "comment" {
				continue
			}
			if c.IsNamed() {
				cmp.Operands = append(cmp.Operands, l.expr(c))
			} else {
				cmp.Ops = append(cmp.Ops, l.text(c))
			}
		}
		return cmp
	case "not_operator":
		return &syntax.UnaryOp{Pos: p, Op: "not", Operand: l.expr(n.ChildByFieldName("argument"))}
	case "unary_operator":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = l.text(o)
		}
		return &syntax.UnaryOp{Pos: p, Op: op, Operand: l.expr(n.ChildByFieldName("argument"))}
	case "true":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstTrue, Value: "True"}
	case "false":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstFalse, Value: "False"}
	case "none":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstNone, Value: "None"}
	case "integer":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstInt, Value: l.text(n)}
	case "float":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstFloat, Value: l.text(n)}
	case "ellipsis":
		return &syntax.Constant{Pos: p, Kind: syntax.ConstEllipsis, Value: "..."}
	case "string", "concatenated_string":
		return l.str(n)
	case "parenthesized_expression":
		if kids := namedChildren(n); len(kids) == 1 {
			return l.expr(kids[0])
		}
		return l.collection(n, syntax.CollTuple)
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return l.collection(n, syntax.CollTuple)
	case "list", "list_pattern":
		return l.collection(n, syntax.CollList)
	case "set":
		return l.collection(n, syntax.CollSet)
	case "slice":
		return l.collection(n, syntax.CollSlice)
	case "dictionary":
		d := &syntax.Collection{Pos: p, Kind: syntax.CollDict}
		for _, c := range namedChildren(n) {
			switch c.Type() {
			case "pair":
				d.Elts = append(d.Elts, l.expr(c.ChildByFieldName("key")), l.expr(c.ChildByFieldName("value")))
			case "dictionary_splat":
				var value syntax.Expr = &syntax.UnknownExpr{Pos: l.pos(c), Kind: c.Type()}
				if kids := namedChildren(c); len(kids) > 0 {
					value = l.expr(kids[0])
				}
				d.Elts = append(d.Elts, nil, value)
			}
		}
		return d
	case "subscript":
		s := &syntax.Subscript{Pos: p, Value: l.expr(n.ChildByFieldName("value"))}
		value := n.ChildByFieldName("value")
		for _, c := range namedChildren(n) {
			if !sameNode(c, value) {
				s.Index = append(s.Index, l.expr(c))
			}
		}
		return s
	case "lambda":
		lam := &syntax.Lambda{Pos: p, Body: l.expr(n.ChildByFieldName("body"))}
		lam.Params = l.params(n.ChildByFieldName("parameters"))
		return lam
	case "list_comprehension":
		return l.comprehension(n, syntax.CollList)
	case "set_comprehension":
		return l.comprehension(n, syntax.CollSet)
	case "generator_expression":
		return l.comprehension(n, syntax.CollTuple)
	case "dictionary_comprehension":
		return l.comprehension(n, syntax.CollDict)
	case "conditional_expression":
		kids := namedChildren(n)
		if len(kids) != 3 {
			break
		}
		return &syntax.IfExp{Pos: p, Body: l.expr(kids[0]), Test: l.expr(kids[1]), Orelse: l.expr(kids[2])}
	case "named_expression":
		ne := &syntax.NamedExpr{Pos: p, Value: l.expr(n.ChildByFieldName("value"))}
		if name := n.ChildByFieldName("name"); name != nil {
			ne.Target = &syntax.Name{Pos: l.pos(name), ID: l.text(name)}
		}
		return ne
	case "yield":
		y := &syntax.Yield{Pos: p, From: hasKeyword(n, "from")}
		if kids := namedChildren(n); len(kids) > 0 {
			y.Value = l.exprList(kids)
		}
		return y
	case "await":
		if kids := namedChildren(n); len(kids) > 0 {
			return &syntax.Await{Pos: p, Value: l.expr(kids[0])}
		}
	case "list_splat", "list_splat_pattern", "dictionary_splat", "dictionary_splat_pattern":
		if kids := namedChildren(n); len(kids) > 0 {
			double := n.Type() == "dictionary_splat" || n.Type() == "dictionary_splat_pattern"
			return &syntax.Starred{Pos: p, Value: l.expr(kids[0]), Double: double}
		}
	case "type", "as_pattern_target":
		if kids := namedChildren(n); len(kids) == 1 {
			return l.expr(kids[0])
		}
	case "keyword_argument":
		return l.optExpr(n.ChildByFieldName("value"))
	}
	return &syntax.UnknownExpr{Pos: p, Kind: n.Type(), Refs: l.refs(n)}
}

func (l *lowerer) str(n *sitter.Node) syntax.Expr {
	var values []syntax.Expr
	stack := []*sitter.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type() == "interpolation" {
			expr := cur.ChildByFieldName("expression")
			if expr == nil {
				if kids := namedChildren(cur); len(kids) > 0 {
					expr = kids[0]
				}
			}
			if expr != nil {
				values = append(values, l.expr(expr))
			}
			continue
		}
		kids := namedChildren(cur)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	if len(values) > 0 {
		return &syntax.FString{Pos: l.pos(n), Values: values}
	}
	return &syntax.Constant{Pos: l.pos(n), Kind: syntax.ConstString, Value: l.text(n)}
}

func (l *lowerer) comprehension(n *sitter.Node, kind syntax.CollectionKind) syntax.Expr {
	c := &syntax.Comprehension{Pos: l.pos(n), Kind: kind}
	body := n.ChildByFieldName("body")
	if body != nil {
		if body.Type() == "pair" {
			c.Elts = append(c.Elts, l.expr(body.ChildByFieldName("key")), l.expr(body.ChildByFieldName("value")))
		} else {
			c.Elts = append(c.Elts, l.expr(body))
		}
	}
	for _, k := range namedChildren(n) {
		switch k.Type() {
		case "for_in_clause":
			c.Generators = append(c.Generators, syntax.Generator{
				Target: l.expr(k.ChildByFieldName("left")),
				Iter:   l.expr(k.ChildByFieldName("right")),
			})
		case "if_clause":
			if len(c.Generators) == 0 {
				continue
			}
			last := &c.Generators[len(c.Generators)-1]
			if kids := namedChildren(k); len(kids) > 0 {
				last.Ifs = append(last.Ifs, l.expr(kids[0]))
			}
		}
	}
	return c
}

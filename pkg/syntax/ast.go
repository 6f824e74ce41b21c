// Package syntax defines the typed syntax tree consumed by the analysis
// passes. The node set is closed: Stmt and Expr carry unexported marker
// methods so only this package can add node kinds, and passes dispatch on
// them with type switches.
package syntax

import "strings"

// Language identifies the language a tree was parsed from.
type Language string

const (
	LangPython  Language = "python"
	LangUnknown Language = "unknown"
)

func (l Language) String() string { return string(l) }

// Pos is a 1-based source position. EndLine is the last line the node spans.
type Pos struct {
	Line    uint32
	Column  uint32
	EndLine uint32
}

// Position returns p. Embedding Pos gives every node its Position method.
func (p Pos) Position() Pos { return p }

// Contains reports whether line falls inside the span.
func (p Pos) Contains(line uint32) bool {
	return line >= p.Line && line <= p.EndLine
}

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// SyntaxError describes the first parse error of a file.
type SyntaxError struct {
	Line    uint32 `json:"line"`
	Column  uint32 `json:"column"`
	Message string `json:"message"`
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// Tree is a parsed source file. Root is nil when SyntaxError is set.
type Tree struct {
	Root        *Module
	Source      []byte
	Language    Language
	Path        string
	SyntaxError *SyntaxError
}

// Lines splits the source into lines without their terminators.
func (t *Tree) Lines() []string {
	if len(t.Source) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(t.Source), "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// Statements.

// Module is the root of a tree.
type Module struct {
	Pos
	Body []Stmt
}

// ParamKind distinguishes positional, *args and **kwargs parameters.
type ParamKind int

const (
	ParamPositional ParamKind = iota
	ParamVarArgs
	ParamKwArgs
)

// Param is a function or lambda parameter.
type Param struct {
	Pos
	Name       string
	Kind       ParamKind
	Default    Expr
	Annotation Expr
}

// FunctionDef is a def or async def.
type FunctionDef struct {
	Pos
	Name       string
	Params     []Param
	Decorators []Expr
	Returns    Expr
	Body       []Stmt
	Async      bool
}

// ClassDef is a class definition.
type ClassDef struct {
	Pos
	Name       string
	Decorators []Expr
	Bases      []Expr
	Keywords   []Keyword
	Body       []Stmt
}

// Assign covers plain, chained and annotated assignment. Value is nil for a
// bare annotation such as `x: int`.
type Assign struct {
	Pos
	Targets    []Expr
	Value      Expr
	Annotation Expr
}

// AugAssign is an augmented assignment such as `x += 1`.
type AugAssign struct {
	Pos
	Target Expr
	Op     string
	Value  Expr
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	Pos
	Value Expr
}

// Return is a return statement; Value may be nil.
type Return struct {
	Pos
	Value Expr
}

// Raise is a raise statement; Exc is nil for a bare re-raise.
type Raise struct {
	Pos
	Exc   Expr
	Cause Expr
}

// Pass is a pass statement.
type Pass struct{ Pos }

// Break is a break statement.
type Break struct{ Pos }

// Continue is a continue statement.
type Continue struct{ Pos }

// If is an if statement. An elif chain is lowered into a nested If as the
// only element of Orelse, with Elif set.
type If struct {
	Pos
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
	Elif   bool
}

// While is a while loop.
type While struct {
	Pos
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// For is a for loop.
type For struct {
	Pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Orelse []Stmt
	Async  bool
}

// ExceptHandler is one except clause of a Try.
type ExceptHandler struct {
	Pos
	Type    Expr
	Name    string
	NamePos Pos
	Body    []Stmt
}

// Try is a try statement.
type Try struct {
	Pos
	Body     []Stmt
	Handlers []ExceptHandler
	Orelse   []Stmt
	Finally  []Stmt
}

// WithItem is one context manager of a With.
type WithItem struct {
	Context Expr
	Target  Expr
}

// With is a with statement.
type With struct {
	Pos
	Items []WithItem
	Body  []Stmt
	Async bool
}

// Alias is one imported name.
type Alias struct {
	Pos
	Name   string
	AsName string
}

// Bound returns the name the import binds in the importing scope.
func (a Alias) Bound(from bool) string {
	if a.AsName != "" {
		return a.AsName
	}
	if from {
		return a.Name
	}
	if i := strings.IndexByte(a.Name, '.'); i >= 0 {
		return a.Name[:i]
	}
	return a.Name
}

// Import is an import or from-import statement. Module is empty for plain
// imports; Wildcard marks `from m import *`.
type Import struct {
	Pos
	From     bool
	Module   string
	Names    []Alias
	Wildcard bool
}

// Global is a global or nonlocal declaration.
type Global struct {
	Pos
	Names    []string
	Nonlocal bool
}

// Delete is a del statement.
type Delete struct {
	Pos
	Targets []Expr
}

// Assert is an assert statement.
type Assert struct {
	Pos
	Test Expr
	Msg  Expr
}

// UnknownStmt stands in for a statement the lowering does not model, or one
// cut off by the depth bound. Refs lists every identifier found inside it so
// passes can still count them as reads.
type UnknownStmt struct {
	Pos
	Kind string
	Refs []*Name
}

func (*Module) stmtNode()      {}
func (*FunctionDef) stmtNode() {}
func (*ClassDef) stmtNode()    {}
func (*Assign) stmtNode()      {}
func (*AugAssign) stmtNode()   {}
func (*ExprStmt) stmtNode()    {}
func (*Return) stmtNode()      {}
func (*Raise) stmtNode()       {}
func (*Pass) stmtNode()        {}
func (*Break) stmtNode()       {}
func (*Continue) stmtNode()    {}
func (*If) stmtNode()          {}
func (*While) stmtNode()       {}
func (*For) stmtNode()         {}
func (*Try) stmtNode()         {}
func (*With) stmtNode()        {}
func (*Import) stmtNode()      {}
func (*Global) stmtNode()      {}
func (*Delete) stmtNode()      {}
func (*Assert) stmtNode()      {}
func (*UnknownStmt) stmtNode() {}

// Expressions.

// Name is an identifier.
type Name struct {
	Pos
	ID string
}

// Attribute is `Value.Attr`.
type Attribute struct {
	Pos
	Value Expr
	Attr  string
}

// Keyword is a keyword argument; Name is empty for `**kwargs`.
type Keyword struct {
	Pos
	Name  string
	Value Expr
}

// Call is a function call.
type Call struct {
	Pos
	Func     Expr
	Args     []Expr
	Keywords []Keyword
}

// BinOp is an arithmetic or bitwise binary operation.
type BinOp struct {
	Pos
	Left  Expr
	Op    string
	Right Expr
}

// BoolOp is an `and`/`or` chain.
type BoolOp struct {
	Pos
	Op     string
	Values []Expr
}

// Compare is a comparison chain.
type Compare struct {
	Pos
	Operands []Expr
	Ops      []string
}

// UnaryOp is `not`, `-`, `+` or `~` applied to Operand.
type UnaryOp struct {
	Pos
	Op      string
	Operand Expr
}

// ConstKind classifies literals.
type ConstKind int

const (
	ConstNone ConstKind = iota
	ConstTrue
	ConstFalse
	ConstInt
	ConstFloat
	ConstString
	ConstEllipsis
)

// Constant is a literal.
type Constant struct {
	Pos
	Kind  ConstKind
	Value string
}

// CollectionKind classifies display expressions.
type CollectionKind int

const (
	CollTuple CollectionKind = iota
	CollList
	CollSet
	CollDict
	CollSlice
)

// Collection is a tuple, list, set, dict or slice display. Dict keys and
// values are interleaved in Elts; a nil key marks `**mapping`.
type Collection struct {
	Pos
	Kind CollectionKind
	Elts []Expr
}

// Subscript is `Value[Index...]`.
type Subscript struct {
	Pos
	Value Expr
	Index []Expr
}

// Lambda is a lambda expression.
type Lambda struct {
	Pos
	Params []Param
	Body   Expr
}

// Generator is one `for ... in ... if ...` clause of a comprehension.
type Generator struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

// Comprehension is a list, set, dict or generator comprehension. Elts holds
// the element expression, or key and value for dicts.
type Comprehension struct {
	Pos
	Kind       CollectionKind
	Elts       []Expr
	Generators []Generator
}

// IfExp is `Body if Test else Orelse`.
type IfExp struct {
	Pos
	Test   Expr
	Body   Expr
	Orelse Expr
}

// NamedExpr is an assignment expression `Target := Value`.
type NamedExpr struct {
	Pos
	Target *Name
	Value  Expr
}

// Yield is `yield` or `yield from`; Value may be nil.
type Yield struct {
	Pos
	Value Expr
	From  bool
}

// Await is `await Value`.
type Await struct {
	Pos
	Value Expr
}

// Starred is `*Value`, or `**Value` when Double is set.
type Starred struct {
	Pos
	Value  Expr
	Double bool
}

// FString is a string literal with interpolated expressions.
type FString struct {
	Pos
	Values []Expr
}

// UnknownExpr stands in for an expression the lowering does not model.
type UnknownExpr struct {
	Pos
	Kind string
	Refs []*Name
}

func (*Name) exprNode()          {}
func (*Attribute) exprNode()     {}
func (*Call) exprNode()          {}
func (*BinOp) exprNode()         {}
func (*BoolOp) exprNode()        {}
func (*Compare) exprNode()       {}
func (*UnaryOp) exprNode()       {}
func (*Constant) exprNode()      {}
func (*Collection) exprNode()    {}
func (*Subscript) exprNode()     {}
func (*Lambda) exprNode()        {}
func (*Comprehension) exprNode() {}
func (*IfExp) exprNode()         {}
func (*NamedExpr) exprNode()     {}
func (*Yield) exprNode()         {}
func (*Await) exprNode()         {}
func (*Starred) exprNode()       {}
func (*FString) exprNode()       {}
func (*UnknownExpr) exprNode()   {}

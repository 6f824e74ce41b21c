package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultMaxDepth bounds how deep the lowering descends before replacing a
// subtree with an opaque Unknown node.
const DefaultMaxDepth = 200

// ErrUnsupportedLanguage is returned for languages without a lowering.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Parser wraps tree-sitter and lowers its concrete syntax tree into the
// typed tree consumed by the analysis passes.
type Parser struct {
	parser   *sitter.Parser
	maxDepth int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth sets the lowering depth bound.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

// New creates a new parser instance.
func New(opts ...Option) *Parser {
	p := &Parser{
		parser:   sitter.NewParser(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*syntax.Tree, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := DetectLanguage(path)
	if lang == syntax.LangUnknown {
		return nil, fmt.Errorf("%w for file: %s", ErrUnsupportedLanguage, path)
	}

	return p.Parse(ctx, source, lang, path)
}

// Parse parses source code with a specified language. A source file that
// does not parse is not an error: the returned tree carries a SyntaxError
// and no Root.
func (p *Parser) Parse(ctx context.Context, source []byte, lang syntax.Language, path string) (*syntax.Tree, error) {
	tsLang, err := GetTreeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	result := &syntax.Tree{
		Source:   source,
		Language: lang,
		Path:     path,
	}

	root := tree.RootNode()
	if root.HasError() {
		result.SyntaxError = firstError(root)
		return result, nil
	}

	l := &lowerer{source: source, maxDepth: p.maxDepth}
	result.Root = l.module(root)
	return result, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// GetTreeSitterLanguage returns the tree-sitter grammar for a language.
func GetTreeSitterLanguage(lang syntax.Language) (*sitter.Language, error) {
	switch lang {
	case syntax.LangPython:
		return python.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) syntax.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi", ".pyw":
		return syntax.LangPython
	default:
		return syntax.LangUnknown
	}
}

// ParseLanguage maps a user-supplied language identifier to a Language.
func ParseLanguage(name string) syntax.Language {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "python", "py", "python3":
		return syntax.LangPython
	default:
		return syntax.LangUnknown
	}
}

// firstError returns the first ERROR or missing node in source order.
func firstError(root *sitter.Node) *syntax.SyntaxError {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type() == "ERROR" || n.IsMissing() {
			pt := n.StartPoint()
			msg := "invalid syntax"
			if n.IsMissing() {
				msg = fmt.Sprintf("missing %q", n.Type())
			}
			return &syntax.SyntaxError{
				Line:    pt.Row + 1,
				Column:  pt.Column + 1,
				Message: msg,
			}
		}

		// Push in reverse so the leftmost child is visited first.
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			c := n.Child(i)
			if c != nil && (c.HasError() || c.IsMissing()) {
				stack = append(stack, c)
			}
		}
	}

	pt := root.StartPoint()
	return &syntax.SyntaxError{Line: pt.Row + 1, Column: pt.Column + 1, Message: "invalid syntax"}
}

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/syntax"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}

// ParsePython parses src as Python and fails the test on error. The source
// may start with a newline for readability; it is trimmed.
func ParsePython(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	p := parser.New()
	defer p.Close()

	tree, err := p.Parse(context.Background(), []byte(strings.TrimPrefix(src, "\n")), syntax.LangPython, "test.py")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return tree
}

// MustParsePython is ParsePython that also fails on a syntax error.
func MustParsePython(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree := ParsePython(t, src)
	if tree.SyntaxError != nil {
		t.Fatalf("unexpected syntax error at line %d: %s", tree.SyntaxError.Line, tree.SyntaxError.Message)
	}
	return tree
}

// ByRule returns the findings with the given rule id.
func ByRule(findings []models.Finding, rule string) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.RuleID == rule {
			out = append(out, f)
		}
	}
	return out
}

// Rules returns the rule id of every finding, in order.
func Rules(findings []models.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.RuleID
	}
	return out
}

// Symbols returns the symbol of every finding, in order.
func Symbols(findings []models.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Symbol
	}
	return out
}

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/internal/testutil"
	"github.com/panbanda/sieve/pkg/syntax"
)

const nested = `
import os

class Repo:
    def save(self):
        x = 1
        return x

    def load(self):
        def helper():
            return 2
        return helper()

def main():
    return Repo()
`

func qualifiedNames(t *Tree) []string {
	out := make([]string, len(t.Scopes))
	for i, s := range t.Scopes {
		out[i] = s.Qualified()
	}
	return out
}

func TestBuild(t *testing.T) {
	tree := Build(testutil.MustParsePython(t, nested))

	assert.Equal(t, []string{"", "Repo", "Repo.save", "Repo.load", "Repo.load.helper", "main"}, qualifiedNames(tree))

	root := tree.Root
	assert.Equal(t, KindModule, root.Kind)
	assert.Equal(t, -1, root.ParentID)
	assert.Equal(t, uint32(1), root.Start)
	assert.GreaterOrEqual(t, root.End, uint32(14))

	for i, s := range tree.Scopes {
		assert.Equal(t, i, s.ID, "scope ids follow creation order")
		if s.Parent != nil {
			assert.Equal(t, s.Parent.ID, s.ParentID)
			assert.Contains(t, s.Parent.Children, s)
		}
	}

	repo := tree.Scopes[1]
	assert.Equal(t, KindClass, repo.Kind)
	assert.Equal(t, uint32(3), repo.Start)
	assert.Equal(t, uint32(11), repo.End)

	helper := tree.Scopes[4]
	assert.Equal(t, KindFunction, helper.Kind)
	assert.Equal(t, "load", helper.Parent.Name)
}

func TestBuildNestedBlocks(t *testing.T) {
	tree := Build(testutil.MustParsePython(t, `
if os.environ.get("DEBUG"):
    def trace():
        pass
else:
    try:
        class Fallback:
            pass
    except ImportError:
        pass
`))

	assert.Equal(t, []string{"", "trace", "Fallback"}, qualifiedNames(tree))
	for _, s := range tree.Scopes[1:] {
		assert.Same(t, tree.Root, s.Parent)
	}
}

func TestBuildWithoutRoot(t *testing.T) {
	tree := Build(nil)
	require.Len(t, tree.Scopes, 1)
	assert.Equal(t, uint32(0), tree.Root.End)

	broken := &syntax.Tree{Source: []byte("def f(:\n    pass\n"), SyntaxError: &syntax.SyntaxError{Line: 1}}
	tree = Build(broken)
	require.Len(t, tree.Scopes, 1)
	assert.Equal(t, uint32(2), tree.Root.End)
}

func TestResolve(t *testing.T) {
	tree := Build(testutil.MustParsePython(t, nested))

	tests := []struct {
		name     string
		line     uint32
		class    string
		function string
	}{
		{name: "module level", line: 1},
		{name: "method body", line: 5, class: "Repo", function: "save"},
		{name: "blank line inside class", line: 7, class: "Repo"},
		{name: "nested function", line: 10, class: "Repo", function: "helper"},
		{name: "method after nested function", line: 11, class: "Repo", function: "load"},
		{name: "top-level function", line: 14, function: "main"},
		{name: "past the end", line: 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := tree.Resolve(tt.line)
			if tt.class == "" {
				assert.Nil(t, ref.Class)
			} else if assert.NotNil(t, ref.Class) {
				assert.Equal(t, tt.class, *ref.Class)
			}
			if tt.function == "" {
				assert.Nil(t, ref.Function)
			} else if assert.NotNil(t, ref.Function) {
				assert.Equal(t, tt.function, *ref.Function)
			}
		})
	}
}

func TestInnermost(t *testing.T) {
	tree := Build(testutil.MustParsePython(t, nested))

	assert.Same(t, tree.Root, tree.Innermost(2))
	assert.Equal(t, "Repo.load.helper", tree.Innermost(9).Qualified())
	assert.Equal(t, "Repo.load", tree.Innermost(11).Qualified())
}

func TestBindingKindString(t *testing.T) {
	assert.Equal(t, "parameter", BindParameter.String())
	assert.Equal(t, "class", BindClass.String())
	assert.Equal(t, "unknown", BindingKind(42).String())
	assert.Equal(t, "function", KindFunction.String())
}

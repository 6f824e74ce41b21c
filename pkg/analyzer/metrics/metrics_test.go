package metrics

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/internal/testutil"
	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
)

func run(t *testing.T, pass analyzer.Pass, src string) []models.Finding {
	t.Helper()
	findings, err := pass.Analyze(testutil.MustParsePython(t, src))
	require.NoError(t, err)
	return findings
}

// branchy builds a function with n sequential if statements.
func branchy(n int) string {
	var sb strings.Builder
	sb.WriteString("def branchy(x):\n")
	for i := range n {
		fmt.Fprintf(&sb, "    if x == %d:\n        return %d\n", i, i)
	}
	sb.WriteString("    return -1\n")
	return sb.String()
}

// straight builds a function with n simple statements.
func straight(n int) string {
	var sb strings.Builder
	sb.WriteString("def straight():\n")
	for i := range n {
		fmt.Fprintf(&sb, "    v%d = %d\n", i, i)
	}
	return sb.String()
}

func TestCyclomaticComplexity(t *testing.T) {
	tests := []struct {
		name     string
		branches int
		rule     string
		severity models.Severity
	}{
		{"simple", 3, "", ""},
		{"at moderate threshold", 6, "", ""},
		{"moderate", 7, models.RuleCyclomaticModerate, models.SeverityInfo},
		{"at high threshold", 11, models.RuleCyclomaticModerate, models.SeverityInfo},
		{"high", 12, models.RuleCyclomaticHigh, models.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := run(t, New(), branchy(tt.branches))
			if tt.rule == "" {
				assert.Empty(t, findings)
				return
			}
			require.Len(t, findings, 1)
			assert.Equal(t, tt.rule, findings[0].RuleID)
			assert.Equal(t, tt.severity, findings[0].Severity)
			assert.Equal(t, "branchy", findings[0].Symbol)
			assert.Equal(t, uint32(1), findings[0].Location.Line)
			assert.Contains(t, findings[0].Message, fmt.Sprintf("score=%d", tt.branches+1))
		})
	}
}

func TestDecisionPoints(t *testing.T) {
	src := `
def f(items, flag):
    try:
        value = [i for i in items if i if i > 1]
    except ValueError:
        value = None
    except (TypeError, KeyError):
        value = []
    while flag and items or not flag:
        flag = False
    return value if value else None
`
	fns := Functions(testutil.MustParsePython(t, src))
	require.Len(t, fns, 1)
	// 1 + 2 comprehension ifs + 2 handlers + while + 2 boolean operators + conditional expression
	assert.Equal(t, uint32(9), fns[0].Cyclomatic)
	assert.Equal(t, 7, fns[0].Statements)
	assert.Equal(t, 2, fns[0].Params)
}

func TestNestedFunctionsMeasuredSeparately(t *testing.T) {
	src := `
class Service:
    def handle(self, request):
        def inner(a, b):
            if a:
                return b
            return a
        return inner(request, 1)
`
	fns := Functions(testutil.MustParsePython(t, src))
	require.Len(t, fns, 2)
	assert.Equal(t, "handle", fns[0].Name)
	assert.Equal(t, uint32(1), fns[0].Cyclomatic)
	assert.Equal(t, 2, fns[0].Statements)
	assert.Equal(t, 1, fns[0].Params)

	assert.Equal(t, "inner", fns[1].Name)
	assert.Equal(t, uint32(2), fns[1].Cyclomatic)
	assert.Equal(t, 2, fns[1].Params)
}

func TestFunctionSize(t *testing.T) {
	assert.Empty(t, run(t, New(), straight(40)))

	large := run(t, New(), straight(41))
	require.Len(t, large, 1)
	assert.Equal(t, models.RuleFunctionLarge, large[0].RuleID)
	assert.Equal(t, models.SeverityInfo, large[0].Severity)

	veryLarge := run(t, New(), straight(76))
	require.Len(t, veryLarge, 1)
	assert.Equal(t, models.RuleFunctionVeryLarge, veryLarge[0].RuleID)
	assert.Equal(t, models.SeverityWarning, veryLarge[0].Severity)
	assert.Equal(t, "Function 'straight' is very large (76 statements).", veryLarge[0].Message)
}

func TestParameterCount(t *testing.T) {
	src := `
def few(a, b, c, d, e):
    return a

def many(a, b, c, d, e, f):
    return a

def too_many(a, b, c, d, e, f, g, h, i, *args, **kwargs):
    return a

class Box:
    def method(self, a, b, c, d, e):
        return a
`
	findings := run(t, New(), src)
	assert.Equal(t, []string{models.RuleManyParams, models.RuleTooManyParams}, testutil.Rules(findings))
	assert.Equal(t, []string{"many", "too_many"}, testutil.Symbols(findings))
	assert.Equal(t, models.CategoryDesign, findings[1].Category)
	assert.Equal(t, "Function 'too_many' has too many parameters (9).", findings[1].Message)
}

func TestDeepNesting(t *testing.T) {
	src := `
def deep(paths):
    if paths:
        for p in paths:
            while p:
                with open(p) as fh:
                    try:
                        if fh:
                            pass
                    except OSError:
                        pass
                p = None
`
	got := testutil.ByRule(run(t, New(), src), models.RuleDeepNesting)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(6), got[0].Location.Line)
	assert.Contains(t, got[0].Message, "depth=5")
}

func TestElifChainIsNotNesting(t *testing.T) {
	src := `
def grade(score):
    if score > 90:
        return "a"
    elif score > 80:
        return "b"
    elif score > 70:
        return "c"
    elif score > 60:
        return "d"
    elif score > 50:
        return "e"
    else:
        return "f"
`
	assert.Empty(t, testutil.ByRule(run(t, New(), src), models.RuleDeepNesting))
}

func TestCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.CyclomaticModerate = 2
	th.MaxNesting = 1
	src := `
def f(x):
    if x:
        if x > 1:
            return 2
    return 0
`
	findings := run(t, New(WithThresholds(th)), src)
	assert.ElementsMatch(t, []string{models.RuleCyclomaticModerate, models.RuleDeepNesting}, testutil.Rules(findings))
}

func TestLint(t *testing.T) {
	src := `
def load():
    try:
        return 1
    except:
        pass

def parse():
    try:
        return 2
    except ValueError:
        pass

def safe():
    try:
        return 3
    except ValueError:
        return None
`
	findings := run(t, NewLint(), src)
	require.Equal(t, []string{models.RuleBareExcept, models.RuleEmptyExcept}, testutil.Rules(findings))
	assert.Equal(t, uint32(4), findings[0].Location.Line)
	assert.Equal(t, models.ConfidenceHigh, findings[0].Confidence)
	assert.Equal(t, uint32(10), findings[1].Location.Line)
	assert.Equal(t, models.ConfidenceMedium, findings[1].Confidence)
}

func TestLintDangerousCalls(t *testing.T) {
	src := `
import os
import subprocess

def run(cmd, text):
    eval(text)
    exec(text)
    os.system(cmd)
    subprocess.run(cmd)
    os.path.join(cmd, text)
    self.eval(text)
`
	findings := run(t, NewLint(), src)
	got := testutil.ByRule(findings, models.RuleDangerousCall)
	assert.Equal(t, []string{"eval", "exec", "os.system", "subprocess.run"}, testutil.Symbols(got))
	for _, f := range got {
		assert.Equal(t, models.SeverityError, f.Severity)
		assert.Equal(t, models.CategorySecurity, f.Category)
	}
	assert.Equal(t, uint32(5), got[0].Location.Line)
}

func TestLintCustomDangerousCalls(t *testing.T) {
	src := `
eval(x)
pickle.loads(data)
shutil.rmtree(path)
`
	findings := run(t, NewLint(WithDangerousCalls([]string{"pickle.loads", "shutil.*"})), src)
	assert.Equal(t, []string{"pickle.loads", "shutil.rmtree"}, testutil.Symbols(findings))
}

func TestLintFileWrite(t *testing.T) {
	src := `
open(p)
open(p, "r")
open(p, "rb")
open(p, "w")
open(p, 'a', encoding="utf-8")
open(p, mode="r+")
open(p, mode)
io.open(p, "xb")
`
	findings := run(t, NewLint(), src)
	got := testutil.ByRule(findings, models.RuleFileWrite)
	require.Len(t, got, 4)
	var lines []uint32
	for _, f := range got {
		lines = append(lines, f.Location.Line)
	}
	assert.Equal(t, []uint32{4, 5, 6, 8}, lines)
	assert.Contains(t, got[0].Message, "'w'")
	assert.Equal(t, models.ConfidenceMedium, got[0].Confidence)
}

func TestResources(t *testing.T) {
	src := `
def leak(path):
    fh = open(path)
    return fh.read()

def closed(path):
    fh = open(path)
    data = fh.read()
    fh.close()
    return data

def handoff(path):
    fh = open(path)
    return fh

def managed(path):
    with open(path) as fh:
        return fh.read()

def passed(path):
    fh = open(path)
    consume(fh)

def wrapped(path):
    fh = open(path)
    return wrap(fh)

def keyword(path):
    fh = open(path)
    load(stream=fh)
`
	findings := run(t, NewResources(), src)
	require.Len(t, findings, 1)
	assert.Equal(t, models.RuleFileNotClosed, findings[0].RuleID)
	assert.Equal(t, models.CategoryResource, findings[0].Category)
	assert.Equal(t, "fh", findings[0].Symbol)
	assert.Equal(t, uint32(2), findings[0].Location.Line)
}

func TestResourcesCustomOpeners(t *testing.T) {
	src := `
def f(path):
    conn = connect(path)
    fh = open(path)
    return conn.query(), fh.read()
`
	findings := run(t, NewResources(WithOpeners([]string{"connect"})), src)
	assert.Equal(t, []string{"conn"}, testutil.Symbols(findings))
}

func TestResourcesClosedInNestedScopeDoNotCount(t *testing.T) {
	src := `
log = open("app.log")

def shutdown():
    log.close()
`
	findings := run(t, NewResources(), src)
	require.Len(t, findings, 1)
	assert.Equal(t, "log", findings[0].Symbol)
}

func TestUnusedImports(t *testing.T) {
	src := `
from __future__ import annotations
import os
import sys as system
import os.path
from typing import List, Dict
from json import *

__all__ = ["Dict"]

def f() -> List[int]:
    import re
    return os.getcwd()
`
	findings := run(t, NewImports(), src)
	require.Len(t, findings, 1)
	assert.Equal(t, models.RuleUnusedImport, findings[0].RuleID)
	assert.Equal(t, "system", findings[0].Symbol)
	assert.Equal(t, uint32(3), findings[0].Location.Line)
	assert.Equal(t, models.CategoryArchitecture, findings[0].Category)
}

func TestUnusedImportsInPackageInitializer(t *testing.T) {
	tree := testutil.MustParsePython(t, "import os\n")
	findings, err := NewImports().Analyze(tree)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	tree.Path = "pkg/__init__.py"
	findings, err = NewImports().Analyze(tree)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestSelfImport(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want int
	}{
		{"plain import", "util.py", "import util\n", 1},
		{"dotted import", "pkg/util.py", "import util.helpers\n", 1},
		{"from import", "util.py", "from util import helper\n", 1},
		{"sibling relative", "pkg/util.py", "from .util import helper\n", 1},
		{"package relative", "pkg/util.py", "from . import util\n", 1},
		{"parent relative", "pkg/sub/util.py", "from ..util import helper\n", 0},
		{"same name as member", "app.py", "from datetime import datetime\n", 0},
		{"submodule named like file", "path.py", "import os.path\n", 0},
		{"script entry point", "__main__.py", "import __main__\n", 0},
		{"no file", "<input>", "import util\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := testutil.MustParsePython(t, tt.src)
			tree.Path = tt.path
			findings, err := NewImports().Analyze(tree)
			require.NoError(t, err)
			got := testutil.ByRule(findings, models.RuleSelfImport)
			assert.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.Equal(t, uint32(1), got[0].Location.Line)
				assert.Equal(t, models.CategoryArchitecture, got[0].Category)
			}
		})
	}
}

func TestBudgetOptionAppliesToEveryCheck(t *testing.T) {
	tree := testutil.MustParsePython(t, "import os\nimport sys\nx = 1\ny = 2\n")
	for _, pass := range []analyzer.Pass{
		New(WithBudget(1)),
		NewLint(WithBudget(1)),
		NewResources(WithBudget(1)),
		NewImports(WithBudget(1)),
	} {
		_, err := pass.Analyze(tree)
		assert.ErrorIs(t, err, analyzer.ErrBudgetExceeded, pass.Name())
	}
}

func TestNilTree(t *testing.T) {
	for _, pass := range []analyzer.Pass{New(), NewLint(), NewResources(), NewImports()} {
		findings, err := pass.Analyze(nil)
		require.NoError(t, err, pass.Name())
		assert.Empty(t, findings, pass.Name())
	}
}

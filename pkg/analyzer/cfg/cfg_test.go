package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/internal/testutil"
	"github.com/panbanda/sieve/pkg/models"
)

func analyze(t *testing.T, src string, opts ...Option) []models.Finding {
	t.Helper()
	findings, err := New(opts...).Analyze(testutil.MustParsePython(t, src))
	require.NoError(t, err)
	return findings
}

func TestDeadCodeAfterTerminal(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		line    uint32
		endLine uint32
		message string
	}{
		{
			name: "after return",
			src: `
def f():
    return 1
    x = 2
    print(x)
`,
			line:    3,
			endLine: 4,
			message: "Unreachable code after 'return' statement.",
		},
		{
			name: "after raise",
			src: `
def f():
    raise ValueError("boom")
    cleanup()
`,
			line:    3,
			message: "Unreachable code after 'raise' statement.",
		},
		{
			name: "after break in loop",
			src: `
def f(items):
    for i in items:
        break
        print(i)
`,
			line:    4,
			message: "Unreachable code after 'break' statement.",
		},
		{
			name: "after sys.exit",
			src: `
import sys

def main():
    sys.exit(1)
    print("never")
`,
			line:    5,
			message: "Unreachable code after call to 'sys.exit()'.",
		},
		{
			name: "after exhaustive if/else",
			src: `
def sign(x):
    if x > 0:
        return 1
    else:
        return -1
    return 0
`,
			line:    6,
			message: "Unreachable code after if/else whose branches all exit.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ByRule(analyze(t, tt.src), models.RuleDeadAfterTerminal)
			require.Len(t, got, 1)
			assert.Equal(t, tt.line, got[0].Location.Line)
			assert.Equal(t, tt.endLine, got[0].Location.EndLine)
			assert.Equal(t, tt.message, got[0].Message)
			assert.Equal(t, models.SeverityWarning, got[0].Severity)
		})
	}
}

func TestNoDeadCodeInWellFormedBodies(t *testing.T) {
	src := `
def f(x):
    if x:
        return 1
    y = x + 1
    for i in range(y):
        if i == 3:
            break
        print(i)
    try:
        g()
    except ValueError:
        raise
    return y

def g():
    pass
`
	assert.Empty(t, analyze(t, src))
}

func TestModuleLevelTerminalIgnored(t *testing.T) {
	src := `
import sys
sys.exit(0)
print("module code is not a function body")
`
	assert.Empty(t, testutil.ByRule(analyze(t, src), models.RuleDeadAfterTerminal))
}

func TestDeadBranchLiteral(t *testing.T) {
	src := `
def f():
    if False:
        print("never")
    if True:
        a = 1
    else:
        a = 2
    return a
`
	got := testutil.ByRule(analyze(t, src), models.RuleDeadBranchLiteral)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(3), got[0].Location.Line)
	assert.Equal(t, uint32(7), got[1].Location.Line)
	assert.Contains(t, got[1].Message, "always true")
}

func TestDeadBranchNonDecimalZero(t *testing.T) {
	src := `
def f():
    if 0x0:
        a = 1
    else:
        a = 2
    return a
`
	for _, f := range testutil.ByRule(analyze(t, src), models.RuleDeadBranchLiteral) {
		assert.NotContains(t, f.Message, "always true")
	}
}

func TestInfiniteLoop(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "while true pass",
			src: `
while True:
    pass
`,
			want: 1,
		},
		{
			name: "while 1 without exit",
			src: `
def serve():
    while 1:
        handle()
`,
			want: 1,
		},
		{
			name: "break exits",
			src: `
while True:
    x = read()
    break
`,
		},
		{
			name: "return exits",
			src: `
def poll():
    while True:
        if ready():
            return True
`,
		},
		{
			name: "raise exits",
			src: `
while True:
    raise StopIteration
`,
		},
		{
			name: "generator yields",
			src: `
def counter():
    n = 0
    while True:
        yield n
        n += 1
`,
		},
		{
			name: "hex zero never runs",
			src: `
def f():
    while 0x0:
        pass
`,
		},
		{
			name: "imaginary zero never runs",
			src: `
while 0j:
    pass
`,
		},
		{
			name: "non literal condition",
			src: `
while running:
    pass
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ByRule(analyze(t, tt.src), models.RuleInfiniteLoop)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestNestedDeadRegionsReportedOnce(t *testing.T) {
	src := `
def f():
    return
    if False:
        print("x")
    while True:
        pass
`
	findings := analyze(t, src)
	require.Len(t, findings, 1)
	assert.Equal(t, models.RuleDeadAfterTerminal, findings[0].RuleID)
}

func TestWithTerminalCalls(t *testing.T) {
	src := `
def f():
    abort_now()
    print("x")
`
	assert.Empty(t, analyze(t, src))
	got := analyze(t, src, WithTerminalCalls([]string{"abort_now"}))
	require.Len(t, got, 1)
	assert.Equal(t, uint32(3), got[0].Location.Line)
}

func TestBudgetExceededKeepsPartialFindings(t *testing.T) {
	src := `
def f():
    return
    dead()

def g():
    h()
`
	findings, err := New(WithBudget(1)).Analyze(testutil.MustParsePython(t, src))
	require.Error(t, err)
	assert.Len(t, findings, 1)
}

func TestNilTree(t *testing.T) {
	findings, err := New().Analyze(nil)
	assert.NoError(t, err)
	assert.Empty(t, findings)
}

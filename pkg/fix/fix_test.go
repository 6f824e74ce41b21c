package fix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/pkg/models"
)

func finding(rule string, line uint32, symbol string) models.Finding {
	return models.Finding{RuleID: rule, Symbol: symbol}.At(line, 5)
}

func TestUseBeforeAssign(t *testing.T) {
	lines := SplitLines([]byte("def f():\n    print(total)\n    total = 3\n"))

	fix, err := Default().Generate(finding(models.RuleUseBeforeAssign, 2, "total"), lines)
	require.NoError(t, err)
	assert.Equal(t, "    print(total)", fix.Before)
	assert.Equal(t, "    total = None\n    print(total)", fix.After)
	assert.Equal(t, "Initialize 'total' before it is used.", fix.Description)
}

func TestUseBeforeAssignPreconditions(t *testing.T) {
	lines := SplitLines([]byte("def f():\n    print(totals)\n"))

	tests := []struct {
		name string
		f    models.Finding
	}{
		{"line beyond source", finding(models.RuleUseBeforeAssign, 9, "total")},
		{"name only as prefix of another word", finding(models.RuleUseBeforeAssign, 2, "total")},
		{"no symbol", finding(models.RuleUseBeforeAssign, 2, "")},
		{"no location", models.Finding{RuleID: models.RuleUseBeforeAssign, Symbol: "total"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Generate(tt.f, lines)
			assert.ErrorIs(t, err, ErrPrecondition)
		})
	}
}

func TestUnusedVariable(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		symbol string
		after  string
		ok     bool
	}{
		{"plain assignment", "    tmp = compute()", "tmp", "    _tmp = compute()", true},
		{"no spaces", "tmp=1", "tmp", "_tmp=1", true},
		{"comparison", "    tmp == 1", "tmp", "", false},
		{"augmented", "    tmp += 1", "tmp", "", false},
		{"tuple target", "    a, tmp = pair", "tmp", "", false},
		{"parameter", "def f(tmp):", "tmp", "", false},
		{"longer name", "    tmp2 = 1", "tmp", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix, err := UnusedVariable(finding(models.RuleUnusedVariable, 1, tt.symbol), []string{tt.line})
			if !tt.ok {
				assert.ErrorIs(t, err, ErrPrecondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.line, fix.Before)
			assert.Equal(t, tt.after, fix.After)
		})
	}
}

func TestDeadAfterTerminal(t *testing.T) {
	lines := SplitLines([]byte("def f():\n    return 1\n    x = 2\n    print(x)\n"))

	f := models.Finding{RuleID: models.RuleDeadAfterTerminal}.At(3, 5).Spanning(4)
	fix, err := Default().Generate(f, lines)
	require.NoError(t, err)
	assert.Equal(t, "    x = 2\n    print(x)", fix.Before)
	assert.Empty(t, fix.After)
	assert.Equal(t, "Remove unreachable code (lines 3-4).", fix.Description)

	single := models.Finding{RuleID: models.RuleDeadAfterTerminal}.At(3, 5)
	fix, err = Default().Generate(single, lines)
	require.NoError(t, err)
	assert.Equal(t, "    x = 2", fix.Before)

	outside := models.Finding{RuleID: models.RuleDeadAfterTerminal}.At(3, 5).Spanning(10)
	_, err = Default().Generate(outside, lines)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{
		models.RuleDeadAfterTerminal,
		models.RuleUnusedVariable,
		models.RuleUseBeforeAssign,
	}, Default().Rules())
	assert.True(t, Default().Has(models.RuleUnusedVariable))
	assert.False(t, Default().Has(models.RuleTaintSource))

	_, err := Default().Generate(finding(models.RuleTaintSource, 1, "x"), []string{"x = input()"})
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestRegistryIsImmutable(t *testing.T) {
	gens := map[string]Generator{models.RuleUnusedVariable: UnusedVariable}
	r := NewRegistry(gens)
	gens[models.RuleTaintSource] = UnusedVariable
	assert.False(t, r.Has(models.RuleTaintSource))
}

func TestGeneratorPanicIsContained(t *testing.T) {
	r := NewRegistry(map[string]Generator{
		"BOOM": func(models.Finding, []string) (models.Fix, error) { panic("boom") },
	})
	fix, err := r.Generate(models.Finding{RuleID: "BOOM"}, nil)
	assert.ErrorIs(t, err, ErrGeneratorFault)
	assert.Equal(t, models.Fix{}, fix)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines([]byte("a\r\nb\n")))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines([]byte("a\n\nb")))
}

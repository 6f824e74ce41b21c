package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/pkg/models"
)

func TestEveryRuleHasAnEntry(t *testing.T) {
	rules := []string{
		models.RuleSyntaxError, models.RuleCleanCode,
		models.RuleDeadAfterTerminal, models.RuleDeadBranchLiteral, models.RuleInfiniteLoop,
		models.RuleUseBeforeAssign, models.RuleUnusedVariable, models.RuleVariableShadowing,
		models.RuleTaintSource, models.RuleTaintPropagation, models.RuleTaintSinkReached,
		models.RuleCyclomaticHigh, models.RuleCyclomaticModerate,
		models.RuleFunctionVeryLarge, models.RuleFunctionLarge, models.RuleDeepNesting,
		models.RuleTooManyParams, models.RuleManyParams,
		models.RuleBareExcept, models.RuleEmptyExcept,
		models.RuleFileNotClosed, models.RuleUnusedImport, models.RuleSelfImport,
		models.RuleDangerousCall, models.RuleFileWrite,
	}
	for _, rule := range rules {
		e, ok := Lookup(rule)
		require.True(t, ok, rule)
		assert.Equal(t, rule, e.ID)
		assert.NotEmpty(t, e.Title, rule)
		assert.NotEmpty(t, e.Summary, rule)
		assert.NotEmpty(t, e.Remediation, rule)
		assert.NotEmpty(t, e.Category, rule)
		assert.NotEmpty(t, e.Severity, rule)
	}
	assert.Len(t, Rules(), len(rules))
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(models.RuleTaintSinkReached)
	require.True(t, ok)
	assert.Equal(t, models.SeverityError, e.Severity)
	assert.Equal(t, models.CategorySecurity, e.Category)
	assert.Equal(t, "cmd = input()\nos.system(cmd)", e.ExampleBefore)

	_, ok = Lookup("NOPE")
	assert.False(t, ok)
}

func TestRulesSorted(t *testing.T) {
	entries := Rules()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].ID, entries[i].ID)
	}

	entries[0].Title = "mutated"
	assert.NotEqual(t, "mutated", Rules()[0].Title)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "A file is opened but never closed.", Describe(models.RuleFileNotClosed))
	assert.Equal(t, "CUSTOM", Describe("CUSTOM"))
}

func TestParseInvalid(t *testing.T) {
	_, err := parse([]byte("- not\n- a map\n"))
	assert.Error(t, err)
}

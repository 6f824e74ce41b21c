package models

import (
	"fmt"
	"sort"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestScopeRefString(t *testing.T) {
	tests := []struct {
		name  string
		scope ScopeRef
		want  string
	}{
		{"module", ScopeRef{}, "<module>"},
		{"function", ScopeRef{Function: strPtr("load")}, "load"},
		{"class", ScopeRef{Class: strPtr("Repo")}, "Repo"},
		{"method", ScopeRef{Class: strPtr("Repo"), Function: strPtr("save")}, "Repo.save"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scope.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.scope.IsModule(); got != (tt.name == "module") {
				t.Errorf("IsModule() = %v", got)
			}
		})
	}
}

func TestFindingBuilders(t *testing.T) {
	base := Finding{RuleID: RuleUnusedVariable, Severity: SeverityWarning}

	f := base.At(4, 2)
	if base.Location != nil {
		t.Error("At must not modify the receiver")
	}
	if f.Line() != 4 || f.Location.Column != 2 {
		t.Errorf("At(4, 2) = %+v", f.Location)
	}

	spanned := f.Spanning(9)
	if spanned.Location.EndLine != 9 {
		t.Errorf("EndLine = %d, want 9", spanned.Location.EndLine)
	}
	if f.Location.EndLine != 0 {
		t.Error("Spanning must copy the location")
	}
	if got := f.Spanning(4).Location.EndLine; got != 0 {
		t.Errorf("single-line span should leave EndLine unset, got %d", got)
	}
	if got := base.Spanning(9); got.Location != nil {
		t.Error("Spanning a non-positional finding should keep it non-positional")
	}

	scoped := f.WithScope(ScopeRef{Function: strPtr("main")})
	if f.Scope != nil || scoped.Scope.String() != "main" {
		t.Errorf("WithScope = %+v", scoped.Scope)
	}

	fixed := f.WithFix(Fix{Description: "remove", Before: "x = 1", After: ""})
	if f.Fix != nil || fixed.Fix.Description != "remove" {
		t.Errorf("WithFix = %+v", fixed.Fix)
	}

	if base.Line() != 0 {
		t.Errorf("Line() of non-positional finding = %d, want 0", base.Line())
	}
}

func TestLess(t *testing.T) {
	findings := []Finding{
		{RuleID: RuleCleanCode},
		Finding{RuleID: RuleUnusedVariable, Symbol: "b"}.At(3, 1),
		Finding{RuleID: RuleUnusedVariable, Symbol: "a"}.At(3, 1),
		Finding{RuleID: RuleBareExcept}.At(3, 1),
		Finding{RuleID: RuleUnusedImport}.At(1, 8),
		Finding{RuleID: RuleUnusedImport}.At(1, 1),
	}
	sort.SliceStable(findings, func(i, j int) bool { return Less(findings[i], findings[j]) })

	want := []string{
		RuleUnusedImport + "@1:1",
		RuleUnusedImport + "@1:8",
		RuleBareExcept + "@3:1",
		RuleUnusedVariable + "@3:1:a",
		RuleUnusedVariable + "@3:1:b",
		RuleCleanCode,
	}
	for i, f := range findings {
		got := f.RuleID
		if f.Location != nil {
			got += fmt.Sprintf("@%d:%d", f.Location.Line, f.Location.Column)
		}
		if f.Symbol != "" {
			got += ":" + f.Symbol
		}
		if got != want[i] {
			t.Errorf("position %d = %s, want %s", i, got, want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	files := []FileResult{
		{Path: "a.py", Findings: []Finding{
			{Severity: SeverityError},
			{Severity: SeverityWarning},
			{Severity: SeverityWarning},
		}},
		{Path: "b.py", Findings: []Finding{{Severity: SeverityInfo}, {Severity: "custom"}}},
		{Path: "c.py"},
	}

	got := Summarize(files)
	want := Summary{Files: 3, Errors: 1, Warnings: 2, Infos: 2}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

package models

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Confidence expresses how certain the analyzer is about a finding.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Category groups findings by the kind of problem they describe.
type Category string

const (
	CategorySecurity        Category = "security"
	CategoryLogic           Category = "logic"
	CategoryMaintainability Category = "maintainability"
	CategoryDesign          Category = "design"
	CategoryStyle           Category = "style"
	CategorySyntax          Category = "syntax"
	CategoryResource        Category = "resource"
	CategoryArchitecture    Category = "architecture"
)

// Location is a 1-based source position.
type Location struct {
	Line    uint32 `json:"line" toon:"line"`
	Column  uint32 `json:"column" toon:"column"`
	EndLine uint32 `json:"end_line,omitempty" toon:"end_line,omitempty"`
}

// ScopeRef names the function and class enclosing a finding.
// Both fields are nil for module-level code.
type ScopeRef struct {
	Class    *string `json:"class,omitempty" toon:"class,omitempty"`
	Function *string `json:"function,omitempty" toon:"function,omitempty"`
}

// IsModule reports whether the reference points at module scope.
func (s ScopeRef) IsModule() bool {
	return s.Class == nil && s.Function == nil
}

// String renders the scope as Class.function, Class, function or <module>.
func (s ScopeRef) String() string {
	switch {
	case s.Class != nil && s.Function != nil:
		return *s.Class + "." + *s.Function
	case s.Class != nil:
		return *s.Class
	case s.Function != nil:
		return *s.Function
	default:
		return "<module>"
	}
}

// Fix is a deterministic textual rewrite for a finding.
type Fix struct {
	Description string `json:"description" toon:"description"`
	Before      string `json:"before" toon:"before"`
	After       string `json:"after" toon:"after"`
}

// Finding is one reported issue. Values are treated as immutable:
// WithScope and WithFix return modified copies.
type Finding struct {
	RuleID     string     `json:"rule_id" toon:"rule_id"`
	Severity   Severity   `json:"severity" toon:"severity"`
	Category   Category   `json:"category" toon:"category"`
	Message    string     `json:"message" toon:"message"`
	Confidence Confidence `json:"confidence" toon:"confidence"`
	Location   *Location  `json:"location,omitempty" toon:"location,omitempty"`
	Scope      *ScopeRef  `json:"scope,omitempty" toon:"scope,omitempty"`
	Fix        *Fix       `json:"fix,omitempty" toon:"fix,omitempty"`
	Symbol     string     `json:"symbol,omitempty" toon:"symbol,omitempty"`
}

// At returns a copy of f positioned at line and column.
func (f Finding) At(line, column uint32) Finding {
	f.Location = &Location{Line: line, Column: column}
	return f
}

// Spanning returns a copy of f whose location ends at endLine.
func (f Finding) Spanning(endLine uint32) Finding {
	if f.Location == nil {
		return f
	}
	loc := *f.Location
	if endLine > loc.Line {
		loc.EndLine = endLine
	}
	f.Location = &loc
	return f
}

// WithScope returns a copy of f carrying scope.
func (f Finding) WithScope(scope ScopeRef) Finding {
	f.Scope = &scope
	return f
}

// WithFix returns a copy of f carrying fix.
func (f Finding) WithFix(fix Fix) Finding {
	f.Fix = &fix
	return f
}

// Line returns the finding's line, or 0 when it is not positional.
func (f Finding) Line() uint32 {
	if f.Location == nil {
		return 0
	}
	return f.Location.Line
}

// Less orders findings deterministically: positional findings first by
// line and column, then rule, message and symbol.
func Less(a, b Finding) bool {
	if (a.Location == nil) != (b.Location == nil) {
		return a.Location != nil
	}
	if a.Location != nil {
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Location.Column != b.Location.Column {
			return a.Location.Column < b.Location.Column
		}
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	if a.Message != b.Message {
		return a.Message < b.Message
	}
	return a.Symbol < b.Symbol
}

// FileResult holds the findings produced for one analyzed file.
type FileResult struct {
	Path     string    `json:"path" toon:"path"`
	Language string    `json:"language" toon:"language"`
	Findings []Finding `json:"findings" toon:"findings"`
}

// Summary counts findings by severity.
type Summary struct {
	Files    int `json:"files" toon:"files"`
	Errors   int `json:"errors" toon:"errors"`
	Warnings int `json:"warnings" toon:"warnings"`
	Infos    int `json:"infos" toon:"infos"`
}

// Summarize counts the findings of every file.
func Summarize(files []FileResult) Summary {
	s := Summary{Files: len(files)}
	for _, f := range files {
		for _, fd := range f.Findings {
			switch fd.Severity {
			case SeverityError:
				s.Errors++
			case SeverityWarning:
				s.Warnings++
			default:
				s.Infos++
			}
		}
	}
	return s
}

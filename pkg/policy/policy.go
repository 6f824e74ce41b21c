// Package policy decides whether a set of findings passes a quality gate.
package policy

import (
	"fmt"

	"github.com/panbanda/sieve/pkg/models"
)

// DefaultMaxWarnings is the number of warnings tolerated by default.
const DefaultMaxWarnings = 5

// Reason explains a policy decision.
type Reason string

const (
	ReasonErrorsPresent    Reason = "errors_present"
	ReasonWarningsExceeded Reason = "warning_threshold_exceeded"
	ReasonWithinLimits     Reason = "within_policy_limits"
)

// Policy is a quality gate.
type Policy struct {
	// MaxWarnings is the largest number of warnings that still passes.
	// A negative value disables the warning check.
	MaxWarnings int  `json:"max_warnings" koanf:"max_warnings"`
	FailOnError bool `json:"fail_on_error" koanf:"fail_on_error"`
}

// Default returns the default policy: any error fails, more than
// DefaultMaxWarnings warnings fail.
func Default() Policy {
	return Policy{MaxWarnings: DefaultMaxWarnings, FailOnError: true}
}

// Result is the outcome of evaluating a policy.
type Result struct {
	Passed      bool   `json:"passed"`
	Reason      Reason `json:"reason"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	Infos       int    `json:"infos"`
	MaxWarnings int    `json:"max_warnings"`
}

// String renders the result in one line.
func (r Result) String() string {
	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	return fmt.Sprintf("%s (%s): %d errors, %d warnings, %d infos", status, r.Reason, r.Errors, r.Warnings, r.Infos)
}

// Evaluate counts findings by severity and applies p. Findings with an
// unknown severity are counted as infos.
func Evaluate(findings []models.Finding, p Policy) Result {
	r := Result{MaxWarnings: p.MaxWarnings}
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityError:
			r.Errors++
		case models.SeverityWarning:
			r.Warnings++
		default:
			r.Infos++
		}
	}

	switch {
	case p.FailOnError && r.Errors > 0:
		r.Reason = ReasonErrorsPresent
	case p.MaxWarnings >= 0 && r.Warnings > p.MaxWarnings:
		r.Reason = ReasonWarningsExceeded
	default:
		r.Passed = true
		r.Reason = ReasonWithinLimits
	}
	return r
}

// EvaluateFiles evaluates p over the findings of every file.
func EvaluateFiles(files []models.FileResult, p Policy) Result {
	var all []models.Finding
	for _, f := range files {
		all = append(all, f.Findings...)
	}
	return Evaluate(all, p)
}

package analyzer

import (
	"errors"
	"fmt"

	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// DefaultBudget is the number of node visits a pass may make on one file.
const DefaultBudget = 200_000

var (
	// ErrBudgetExceeded is returned when a pass visits more nodes than its
	// budget allows. The findings gathered before the cutoff are kept.
	ErrBudgetExceeded = errors.New("visit budget exceeded")

	// ErrPassFault wraps a panic raised inside a pass.
	ErrPassFault = errors.New("pass fault")

	// ErrNodesSkipped reports that Guard skipped nodes but the pass ran to
	// completion.
	ErrNodesSkipped = errors.New("nodes skipped")
)

// Pass is one analysis over a single file's syntax tree. Passes never
// mutate the tree and never observe each other's output.
type Pass interface {
	// Name identifies the pass in logs.
	Name() string

	// Analyze returns the findings for tree. A non-nil error means the pass
	// stopped early; the returned findings are still valid.
	Analyze(tree *syntax.Tree) ([]models.Finding, error)
}

type budgetExceeded struct{}

// Reporter collects the findings of one pass run and enforces its visit
// budget.
type Reporter struct {
	findings []models.Finding
	visits   int
	budget   int
	faults   int
}

// NewReporter creates a reporter. A budget <= 0 uses DefaultBudget.
func NewReporter(budget int) *Reporter {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Reporter{budget: budget}
}

// Report records a finding.
func (r *Reporter) Report(f models.Finding) {
	r.findings = append(r.findings, f)
}

// Visit counts one node visit and aborts the pass once the budget is spent.
func (r *Reporter) Visit() {
	r.visits++
	if r.visits > r.budget {
		panic(budgetExceeded{})
	}
}

// Guard runs fn, skipping it if it panics. Budget exhaustion still aborts
// the whole pass.
func (r *Reporter) Guard(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			if _, ok := v.(budgetExceeded); ok {
				panic(v)
			}
			r.faults++
		}
	}()
	fn()
}

// Findings returns the findings reported so far.
func (r *Reporter) Findings() []models.Finding {
	return r.findings
}

// Faults returns the number of nodes skipped by Guard.
func (r *Reporter) Faults() int {
	return r.faults
}

// Run executes fn with a fresh Reporter. A panic or an exhausted budget
// stops fn; the findings reported up to that point are returned together
// with the error. Nodes skipped by Guard yield ErrNodesSkipped.
func Run(budget int, fn func(r *Reporter)) (findings []models.Finding, err error) {
	r := NewReporter(budget)
	defer func() {
		if v := recover(); v != nil {
			findings = r.Findings()
			if _, ok := v.(budgetExceeded); ok {
				err = ErrBudgetExceeded
				return
			}
			err = fmt.Errorf("%w: %v", ErrPassFault, v)
		}
	}()

	fn(r)
	if r.Faults() > 0 {
		return r.Findings(), fmt.Errorf("%w: %d", ErrNodesSkipped, r.Faults())
	}
	return r.Findings(), nil
}

// Finding starts a finding for rule with the given attributes.
func Finding(rule string, severity models.Severity, category models.Category, confidence models.Confidence, message string) models.Finding {
	return models.Finding{
		RuleID:     rule,
		Severity:   severity,
		Category:   category,
		Confidence: confidence,
		Message:    message,
	}
}

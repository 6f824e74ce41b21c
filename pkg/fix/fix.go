// Package fix generates deterministic textual fixes for findings. A
// generator either produces a fix whose preconditions were all verified
// against the source, or returns an error wrapping ErrPrecondition.
package fix

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/panbanda/sieve/pkg/models"
)

var (
	// ErrPrecondition is returned when the source does not match what a
	// fix expects.
	ErrPrecondition = errors.New("fix precondition failed")

	// ErrGeneratorFault wraps a panic raised by a generator.
	ErrGeneratorFault = errors.New("fix generator fault")

	// ErrNoGenerator is returned for rules without a generator.
	ErrNoGenerator = errors.New("no fix generator for rule")
)

// Generator builds a fix for f from the source lines of its file.
type Generator func(f models.Finding, lines []string) (models.Fix, error)

// Registry maps rule ids to generators. It is immutable once built.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry creates a registry from generators. The map is copied.
func NewRegistry(generators map[string]Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator, len(generators))}
	for rule, gen := range generators {
		r.generators[rule] = gen
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry(map[string]Generator{
		models.RuleUseBeforeAssign:   UseBeforeAssign,
		models.RuleUnusedVariable:    UnusedVariable,
		models.RuleDeadAfterTerminal: DeadAfterTerminal,
	})
})

// Default returns the built-in registry.
func Default() *Registry {
	return defaultRegistry()
}

// Has reports whether rule has a generator.
func (r *Registry) Has(rule string) bool {
	_, ok := r.generators[rule]
	return ok
}

// Rules returns the rule ids with a generator, sorted.
func (r *Registry) Rules() []string {
	rules := make([]string, 0, len(r.generators))
	for rule := range r.generators {
		rules = append(rules, rule)
	}
	slices.Sort(rules)
	return rules
}

// Generate runs the generator for f. A panicking generator yields
// ErrGeneratorFault instead of propagating.
func (r *Registry) Generate(f models.Finding, lines []string) (fix models.Fix, err error) {
	gen, ok := r.generators[f.RuleID]
	if !ok {
		return models.Fix{}, fmt.Errorf("%w: %s", ErrNoGenerator, f.RuleID)
	}
	defer func() {
		if v := recover(); v != nil {
			fix = models.Fix{}
			err = fmt.Errorf("%w: %s: %v", ErrGeneratorFault, f.RuleID, v)
		}
	}()
	return gen(f, lines)
}

// SplitLines splits source into lines without their terminators.
func SplitLines(source []byte) []string {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// line returns the 1-based line n of lines.
func line(lines []string, n uint32) (string, error) {
	if n == 0 || int(n) > len(lines) {
		return "", fmt.Errorf("%w: line %d outside source of %d lines", ErrPrecondition, n, len(lines))
	}
	return lines[n-1], nil
}

func indentOf(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func symbol(f models.Finding) (string, error) {
	if f.Symbol == "" {
		return "", fmt.Errorf("%w: finding has no symbol", ErrPrecondition)
	}
	if f.Location == nil {
		return "", fmt.Errorf("%w: finding has no location", ErrPrecondition)
	}
	return f.Symbol, nil
}

// UseBeforeAssign initializes the variable to None right above its first
// use.
func UseBeforeAssign(f models.Finding, lines []string) (models.Fix, error) {
	name, err := symbol(f)
	if err != nil {
		return models.Fix{}, err
	}
	before, err := line(lines, f.Location.Line)
	if err != nil {
		return models.Fix{}, err
	}
	if !wordPattern(name).MatchString(before) {
		return models.Fix{}, fmt.Errorf("%w: line %d does not mention %q", ErrPrecondition, f.Location.Line, name)
	}
	return models.Fix{
		Description: fmt.Sprintf("Initialize '%s' before it is used.", name),
		Before:      before,
		After:       indentOf(before) + name + " = None\n" + before,
	}, nil
}

// UnusedVariable renames a plain single-target assignment to an
// underscore-prefixed name.
func UnusedVariable(f models.Finding, lines []string) (models.Fix, error) {
	name, err := symbol(f)
	if err != nil {
		return models.Fix{}, err
	}
	before, err := line(lines, f.Location.Line)
	if err != nil {
		return models.Fix{}, err
	}
	loc := assignPattern(name).FindStringSubmatchIndex(before)
	if loc == nil {
		return models.Fix{}, fmt.Errorf("%w: line %d is not a plain assignment to %q", ErrPrecondition, f.Location.Line, name)
	}
	start := loc[2]
	return models.Fix{
		Description: fmt.Sprintf("Rename '%s' to '_%s' to mark it as intentionally unused.", name, name),
		Before:      before,
		After:       before[:start] + "_" + before[start:],
	}, nil
}

// DeadAfterTerminal removes the unreachable line range.
func DeadAfterTerminal(f models.Finding, lines []string) (models.Fix, error) {
	if f.Location == nil {
		return models.Fix{}, fmt.Errorf("%w: finding has no location", ErrPrecondition)
	}
	from, to := f.Location.Line, f.Location.EndLine
	if to < from {
		to = from
	}
	if from == 0 || int(to) > len(lines) {
		return models.Fix{}, fmt.Errorf("%w: lines %d-%d outside source of %d lines", ErrPrecondition, from, to, len(lines))
	}
	return models.Fix{
		Description: fmt.Sprintf("Remove unreachable code (lines %d-%d).", from, to),
		Before:      strings.Join(lines[from-1:to], "\n"),
		After:       "",
	}, nil
}

func wordPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\w])` + regexp.QuoteMeta(name) + `($|[^\w])`)
}

// assignPattern matches `name = ...` but neither `name == ...` nor
// augmented or annotated assignments.
func assignPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*(` + regexp.QuoteMeta(name) + `)\s*=($|[^=])`)
}

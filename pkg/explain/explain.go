// Package explain provides the human-readable catalog of rules. It is a
// pure lookup over an embedded table and never alters findings.
package explain

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/panbanda/sieve/pkg/models"
)

//go:embed rules.yaml
var catalogYAML []byte

// Entry describes one rule.
type Entry struct {
	ID            string          `json:"id" yaml:"-"`
	Title         string          `json:"title" yaml:"title"`
	Category      models.Category `json:"category" yaml:"category"`
	Severity      models.Severity `json:"severity" yaml:"severity"`
	Summary       string          `json:"summary" yaml:"summary"`
	Detail        string          `json:"detail" yaml:"detail"`
	Remediation   string          `json:"remediation" yaml:"remediation"`
	Steps         []string        `json:"steps,omitempty" yaml:"steps"`
	ExampleBefore string          `json:"example_before,omitempty" yaml:"example_before"`
	ExampleAfter  string          `json:"example_after,omitempty" yaml:"example_after"`
}

type catalog struct {
	entries map[string]Entry
	sorted  []Entry
}

var load = sync.OnceValues(func() (*catalog, error) {
	return parse(catalogYAML)
})

func parse(data []byte) (*catalog, error) {
	raw := make(map[string]Entry)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rule catalog: %w", err)
	}
	c := &catalog{entries: make(map[string]Entry, len(raw))}
	for id, e := range raw {
		e.ID = id
		e.ExampleBefore = strings.TrimSuffix(e.ExampleBefore, "\n")
		e.ExampleAfter = strings.TrimSuffix(e.ExampleAfter, "\n")
		c.entries[id] = e
		c.sorted = append(c.sorted, e)
	}
	slices.SortFunc(c.sorted, func(a, b Entry) int { return strings.Compare(a.ID, b.ID) })
	return c, nil
}

func mustLoad() *catalog {
	c, err := load()
	if err != nil {
		// The catalog is embedded at build time; failing to parse it is a
		// programming error.
		panic(err)
	}
	return c
}

// Lookup returns the entry for rule.
func Lookup(rule string) (Entry, bool) {
	e, ok := mustLoad().entries[rule]
	return e, ok
}

// Rules returns every entry sorted by rule id.
func Rules() []Entry {
	return slices.Clone(mustLoad().sorted)
}

// Describe returns the one-line summary of rule, or the rule id itself for
// unknown rules.
func Describe(rule string) string {
	if e, ok := Lookup(rule); ok {
		return e.Summary
	}
	return rule
}

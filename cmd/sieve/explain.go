package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/output"
	"github.com/panbanda/sieve/pkg/explain"
	"github.com/panbanda/sieve/pkg/fix"
)

var explainCmd = &cobra.Command{
	Use:   "explain RULE_ID",
	Short: "Explain what a rule detects and how to fix it",
	Long: `Prints the catalog entry of a rule: what it detects, why it matters,
remediation steps and a before/after example.

Examples:
  sieve explain DFG_UNUSED_VARIABLE
  sieve explain taint_sink_reached -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List every rule",
	RunE:  runRules,
}

func init() {
	explainCmd.Flags().StringP("format", "f", "text", "Output format: text, json, markdown, yaml, toon")
	rulesCmd.Flags().StringP("format", "f", "text", "Output format: text, json, markdown, yaml, toon")

	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	id := strings.ToUpper(strings.TrimSpace(args[0]))
	entry, ok := explain.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown rule %q (see 'sieve rules')", args[0])
	}
	return stdoutFormatter(cmd).Output(ruleSection(entry))
}

func ruleSection(e explain.Entry) *output.Section {
	s := &output.Section{
		Title:   fmt.Sprintf("%s: %s", e.ID, e.Title),
		Content: fmt.Sprintf("Severity: %s    Category: %s\n\n%s", e.Severity, e.Category, e.Summary),
		Data:    e,
	}
	if e.Detail != "" {
		s.Sections = append(s.Sections, output.Section{Title: "Why it matters", Content: e.Detail})
	}
	remediation := e.Remediation
	for i, step := range e.Steps {
		remediation += fmt.Sprintf("\n%d. %s", i+1, step)
	}
	if remediation != "" {
		s.Sections = append(s.Sections, output.Section{Title: "How to fix", Content: strings.TrimPrefix(remediation, "\n")})
	}
	if e.ExampleBefore != "" {
		s.Sections = append(s.Sections, output.Section{Title: "Before", Content: e.ExampleBefore})
	}
	if e.ExampleAfter != "" {
		s.Sections = append(s.Sections, output.Section{Title: "After", Content: e.ExampleAfter})
	}
	return s
}

func runRules(cmd *cobra.Command, args []string) error {
	entries := explain.Rules()
	fixes := fix.Default()
	rows := make([][]string, len(entries))
	for i, e := range entries {
		autofix := ""
		if fixes.Has(e.ID) {
			autofix = "yes"
		}
		rows[i] = []string{e.ID, string(e.Severity), string(e.Category), autofix, truncate(e.Summary, 60)}
	}
	table := output.NewTable("Rules", []string{"Rule", "Severity", "Category", "Fix", "Summary"}, rows,
		nil, entries)
	return stdoutFormatter(cmd).Output(table)
}

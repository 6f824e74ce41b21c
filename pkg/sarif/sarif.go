// Package sarif exports findings as a SARIF 2.1.0 report for CI tooling.
package sarif

import (
	"fmt"
	"io"
	"slices"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/panbanda/sieve/pkg/explain"
	"github.com/panbanda/sieve/pkg/models"
)

const (
	// ToolName is the driver name written to reports.
	ToolName = "sieve"
	// InformationURI points at the tool's documentation.
	InformationURI = "https://github.com/panbanda/sieve"
)

// Level maps a severity to a SARIF level: errors stay errors, everything
// else is a note.
func Level(s models.Severity) string {
	if s == models.SeverityError {
		return "error"
	}
	return "note"
}

// Export builds a report with one run holding the findings of every file.
// Each distinct rule id is declared once, in sorted order.
func Export(files []models.FileResult) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("create SARIF report: %w", err)
	}
	run := sarif.NewRunWithInformationURI(ToolName, InformationURI)

	for _, id := range ruleIDs(files) {
		level := "note"
		if e, ok := explain.Lookup(id); ok {
			level = Level(e.Severity)
		}
		run.AddRule(id).
			WithDescription(explain.Describe(id)).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})
	}

	for _, file := range files {
		for _, f := range file.Findings {
			run.AddResult(result(file.Path, f))
		}
	}

	report.AddRun(run)
	return report, nil
}

// Write exports files and writes the indented report to w.
func Write(w io.Writer, files []models.FileResult) error {
	report, err := Export(files)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}

func ruleIDs(files []models.FileResult) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, file := range files {
		for _, f := range file.Findings {
			if !seen[f.RuleID] {
				seen[f.RuleID] = true
				ids = append(ids, f.RuleID)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

func result(path string, f models.Finding) *sarif.Result {
	r := sarif.NewRuleResult(f.RuleID).
		WithMessage(sarif.NewTextMessage(f.Message)).
		WithLevel(Level(f.Severity))

	if f.Location != nil {
		line, col := int(f.Location.Line), int(f.Location.Column)
		region := &sarif.Region{StartLine: &line, StartColumn: &col}
		if f.Location.EndLine > f.Location.Line {
			end := int(f.Location.EndLine)
			region.EndLine = &end
		}
		loc := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(path)).
				WithRegion(region),
		)
		r.WithLocations([]*sarif.Location{loc})
	}

	r.PropertyBag = *sarif.NewPropertyBag()
	r.Add("category", string(f.Category))
	r.Add("confidence", string(f.Confidence))
	if f.Scope != nil {
		r.Add("scope", f.Scope.String())
	}
	if f.Symbol != "" {
		r.Add("symbol", f.Symbol)
	}
	return r
}

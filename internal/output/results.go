package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/policy"
	"github.com/panbanda/sieve/pkg/sarif"
)

// Results is the Renderable produced by an analysis run.
type Results struct {
	Files   []models.FileResult `json:"files" toon:"files"`
	Summary models.Summary      `json:"summary" toon:"summary"`
	Policy  *policy.Result      `json:"policy,omitempty" toon:"policy,omitempty"`
	Errors  []string            `json:"errors,omitempty" toon:"errors,omitempty"`
}

// NewResults summarizes files. A nil verdict omits the policy section.
func NewResults(files []models.FileResult, verdict *policy.Result, errs []string) *Results {
	if files == nil {
		files = []models.FileResult{}
	}
	return &Results{
		Files:   files,
		Summary: models.Summarize(files),
		Policy:  verdict,
		Errors:  errs,
	}
}

var findingHeaders = []string{"Location", "Severity", "Rule", "Message", "Scope"}

func findingRows(findings []models.Finding, colored bool) [][]string {
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		sev := string(f.Severity)
		if colored {
			sev = SeverityColor(f.Severity, sev)
		}
		scope := ""
		if f.Scope != nil {
			scope = f.Scope.String()
		}
		rows = append(rows, []string{location(f), sev, f.RuleID, f.Message, scope})
	}
	return rows
}

func location(f models.Finding) string {
	if f.Location == nil {
		return "-"
	}
	s := fmt.Sprintf("%d:%d", f.Location.Line, f.Location.Column)
	if f.Location.EndLine > 0 {
		s += "-" + strconv.Itoa(int(f.Location.EndLine))
	}
	return s
}

// clean reports whether the file only carries the CLEAN_CODE marker.
func clean(fr models.FileResult) bool {
	return len(fr.Findings) == 1 && fr.Findings[0].RuleID == models.RuleCleanCode
}

func (r *Results) RenderData() any {
	return r
}

func (r *Results) RenderText(w io.Writer, colored bool) error {
	for _, fr := range r.Files {
		if clean(fr) {
			if colored {
				color.New(color.FgGreen).Fprintf(w, "%s: clean\n", fr.Path)
			} else {
				fmt.Fprintf(w, "%s: clean\n", fr.Path)
			}
			continue
		}
		heading(w, fr.Path, "-", colored)
		renderTable(w, findingHeaders, findingRows(fr.Findings, colored), nil)
		fmt.Fprintln(w)
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}

	s := r.Summary
	fmt.Fprintf(w, "\n%d files analyzed: %d errors, %d warnings, %d infos\n", s.Files, s.Errors, s.Warnings, s.Infos)
	if r.Policy != nil {
		verdict := r.Policy.String()
		if colored {
			if r.Policy.Passed {
				verdict = color.GreenString(verdict)
			} else {
				verdict = color.RedString(verdict)
			}
		}
		fmt.Fprintf(w, "Policy: %s\n", verdict)
	}
	return nil
}

func (r *Results) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Analysis Report\n\n")
	s := r.Summary
	markdownTable(w, []string{"Files", "Errors", "Warnings", "Infos"}, [][]string{{
		strconv.Itoa(s.Files), strconv.Itoa(s.Errors), strconv.Itoa(s.Warnings), strconv.Itoa(s.Infos),
	}})
	fmt.Fprintln(w)

	if r.Policy != nil {
		fmt.Fprintf(w, "**Policy:** %s\n\n", r.Policy.String())
	}

	for _, fr := range r.Files {
		fmt.Fprintf(w, "## %s\n\n", fr.Path)
		if clean(fr) {
			fmt.Fprintf(w, "No issues found.\n\n")
			continue
		}
		markdownTable(w, findingHeaders, findingRows(fr.Findings, false))
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "## Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "- %s\n", e)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (r *Results) RenderSARIF(w io.Writer) error {
	return sarif.Write(w, r.Files)
}

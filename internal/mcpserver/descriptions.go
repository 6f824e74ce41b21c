package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyzeCode() string {
	return `Runs the sieve static analyzers over a snippet of Python source and returns structured findings.

USE WHEN:
- Reviewing code you just wrote or were shown, before proposing it
- Checking a patch for unreachable code, unused or shadowed variables
- Looking for untrusted input flowing into eval, exec, subprocess or SQL calls

INTERPRETING RESULTS:
- severity error: a likely bug or security issue (tainted sink, syntax error)
- severity warning: suspicious code worth fixing (dead code, use before assignment)
- severity info: design or style observations (shadowing, moderate complexity)
- confidence low/medium/high: how certain the analyzer is; low confidence
  use-before-assign usually means a forward reference
- CLEAN_CODE with no location means nothing was found
- A single SYNTAX_ERROR means no other analysis ran

METRICS RETURNED:
- Per finding: rule_id, severity, category, message, confidence, location
  (line, column, end_line), scope (class/function), symbol, optional fix
  with before/after text
- Summary: counts of errors, warnings and infos`
}

func describeAnalyzeFile() string {
	return `Runs the sieve static analyzers over one Python file on disk.

USE WHEN:
- Auditing an existing module
- Verifying that a fix removed the findings it targeted

INTERPRETING RESULTS:
- Same finding shape as analyze_code; the path is echoed back
- Files excluded by the project configuration are rejected

METRICS RETURNED:
- Per finding: rule_id, severity, category, message, confidence, location,
  scope, symbol and optional fix
- Summary: counts of errors, warnings and infos`
}

func describeExplainRule() string {
	return `Explains a sieve rule identifier: what it detects, why it matters, and how to fix it.

USE WHEN:
- A finding's rule_id is unfamiliar
- You need remediation steps or a before/after example

INTERPRETING RESULTS:
- severity and category are the rule's defaults
- steps are ordered remediation actions

METRICS RETURNED:
- id, title, category, severity, summary, detail, remediation, steps,
  example_before, example_after`
}

func describeListScopes() string {
	return `Lists the lexical scopes (module, classes, functions) of Python source with their line spans.

USE WHEN:
- Mapping a finding's line to its enclosing function or method
- Understanding the structure of a file before editing it

INTERPRETING RESULTS:
- id 0 is always the module scope, with parent -1
- qualified joins enclosing class and function names with dots
- start and end are 1-based inclusive line numbers
- functions lists every def in source order; params excludes self and cls

METRICS RETURNED:
- Per scope: id, kind, name, qualified, parent, start, end
- Per function: name, line, end_line, cyclomatic, statements, params`
}

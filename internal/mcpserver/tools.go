package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/sieve/internal/output"
	"github.com/panbanda/sieve/pkg/analyzer/metrics"
	"github.com/panbanda/sieve/pkg/explain"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/scope"
	"github.com/panbanda/sieve/pkg/syntax"
)

// maxSourceBytes bounds the size of source accepted by a tool call.
const maxSourceBytes = 2 << 20

// FormatInput selects the response encoding.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

// AnalyzeCodeInput analyzes inline source.
type AnalyzeCodeInput struct {
	FormatInput
	Code     string `json:"code" jsonschema:"Source code to analyze."`
	Language string `json:"language,omitempty" jsonschema:"Source language. Only python is supported. Default python."`
	Filename string `json:"filename,omitempty" jsonschema:"Name reported as the path of the result. Default <input>."`
}

// AnalyzeFileInput analyzes a file on disk.
type AnalyzeFileInput struct {
	FormatInput
	Path string `json:"path" jsonschema:"Path of the Python file to analyze."`
}

// ExplainRuleInput looks up a rule.
type ExplainRuleInput struct {
	FormatInput
	RuleID string `json:"rule_id" jsonschema:"Rule identifier, e.g. DFG_UNUSED_VARIABLE."`
}

// ListScopesInput lists the scopes of inline source or a file.
type ListScopesInput struct {
	FormatInput
	Code string `json:"code,omitempty" jsonschema:"Source code. Either code or path is required."`
	Path string `json:"path,omitempty" jsonschema:"Path of a Python file. Either code or path is required."`
}

// ScopeInfo is one row of the list_scopes response.
type ScopeInfo struct {
	ID        int    `json:"id" toon:"id"`
	Kind      string `json:"kind" toon:"kind"`
	Name      string `json:"name" toon:"name"`
	Qualified string `json:"qualified" toon:"qualified"`
	Parent    int    `json:"parent" toon:"parent"`
	Start     uint32 `json:"start" toon:"start"`
	End       uint32 `json:"end" toon:"end"`
}

func getFormat(input FormatInput) output.Format {
	switch strings.ToLower(input.Format) {
	case "json":
		return output.FormatJSON
	case "yaml", "yml":
		return output.FormatYAML
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(&buf, format, false).Output(data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) newParser() *parser.Parser {
	return parser.New(s.cfg.ParserOptions()...)
}

func (s *Server) handleAnalyzeCode(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeCodeInput) (*mcp.CallToolResult, any, error) {
	if input.Code == "" {
		return toolError("code is required")
	}
	if len(input.Code) > maxSourceBytes {
		return toolError(fmt.Sprintf("code exceeds %d bytes", maxSourceBytes))
	}
	lang := syntax.LangPython
	if input.Language != "" {
		lang = parser.ParseLanguage(input.Language)
	}
	if lang == syntax.LangUnknown {
		return toolError(fmt.Sprintf("unsupported language %q", input.Language))
	}
	name := input.Filename
	if name == "" {
		name = "<input>"
	}

	psr := s.newParser()
	defer psr.Close()

	result, err := s.engine.AnalyzeCode(ctx, psr, []byte(input.Code), lang, name)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(output.NewResults([]models.FileResult{result}, nil, nil), getFormat(input.FormatInput))
}

func (s *Server) handleAnalyzeFile(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeFileInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	if s.cfg.ShouldExclude(input.Path) {
		return toolError(fmt.Sprintf("%s is excluded by configuration", input.Path))
	}
	source, err := readSource(input.Path)
	if err != nil {
		return toolError(err.Error())
	}

	psr := s.newParser()
	defer psr.Close()

	result, err := s.engine.AnalyzeSource(ctx, psr, source, input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(output.NewResults([]models.FileResult{result}, nil, nil), getFormat(input.FormatInput))
}

func (s *Server) handleExplainRule(ctx context.Context, req *mcp.CallToolRequest, input ExplainRuleInput) (*mcp.CallToolResult, any, error) {
	id := strings.ToUpper(strings.TrimSpace(input.RuleID))
	if id == "" {
		return toolError("rule_id is required")
	}
	entry, ok := explain.Lookup(id)
	if !ok {
		return toolError(fmt.Sprintf("unknown rule %q", input.RuleID))
	}
	return toolResult(entry, getFormat(input.FormatInput))
}

func (s *Server) handleListScopes(ctx context.Context, req *mcp.CallToolRequest, input ListScopesInput) (*mcp.CallToolResult, any, error) {
	var (
		source []byte
		path   = "<input>"
	)
	switch {
	case input.Code != "" && input.Path != "":
		return toolError("provide either code or path, not both")
	case input.Code != "":
		source = []byte(input.Code)
	case input.Path != "":
		data, err := readSource(input.Path)
		if err != nil {
			return toolError(err.Error())
		}
		source, path = data, input.Path
	default:
		return toolError("code or path is required")
	}

	psr := s.newParser()
	defer psr.Close()

	tree, err := psr.Parse(ctx, source, syntax.LangPython, path)
	if err != nil {
		return toolError(err.Error())
	}
	if tree.SyntaxError != nil {
		return toolError(fmt.Sprintf("syntax error at line %d: %s", tree.SyntaxError.Line, tree.SyntaxError.Message))
	}
	return toolResult(struct {
		Path      string                    `json:"path" toon:"path"`
		Scopes    []ScopeInfo               `json:"scopes" toon:"scopes"`
		Functions []metrics.FunctionMetrics `json:"functions" toon:"functions"`
	}{path, scopeInfos(scope.Build(tree)), metrics.Functions(tree)}, getFormat(input.FormatInput))
}

func scopeInfos(t *scope.Tree) []ScopeInfo {
	infos := make([]ScopeInfo, len(t.Scopes))
	for i, sc := range t.Scopes {
		infos[i] = ScopeInfo{
			ID:        sc.ID,
			Kind:      sc.Kind.String(),
			Name:      sc.Name,
			Qualified: sc.Qualified(),
			Parent:    sc.ParentID,
			Start:     sc.Start,
			End:       sc.End,
		}
		if sc.Kind == scope.KindModule {
			infos[i].Qualified = "<module>"
		}
	}
	return infos
}

func readSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxSourceBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, maxSourceBytes)
	}
	return os.ReadFile(path)
}

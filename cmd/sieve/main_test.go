package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/sieve/internal/testutil"
	"github.com/panbanda/sieve/pkg/models"
)

// execute runs the root command with args in a fresh temp directory and
// returns its stdout. Flags are reset first since cobra keeps their values
// between executions.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

const deadCode = `def handler():
    return 1
    print("unreachable")
`

const injectable = `import subprocess

def run():
    cmd = input()
    subprocess.call(cmd, shell=True)
`

func TestAnalyzeJSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.CreateFileTree(t, dir, map[string]string{
		"app.py":      deadCode,
		"clean.py":    "x = 1\nprint(x)\n",
		"notes.txt":   "not python",
		"venv/lib.py": deadCode,
		"pkg/util.py": "def f(a):\n    return a\n",
	})

	out, err := execute(t, "analyze", "-f", "json", "--no-cache", "--no-progress", ".")
	require.NoError(t, err)

	var decoded struct {
		Files   []models.FileResult `json:"files"`
		Summary models.Summary      `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)

	var paths []string
	for _, f := range decoded.Files {
		paths = append(paths, filepath.ToSlash(f.Path))
	}
	assert.Equal(t, []string{"app.py", "clean.py", "pkg/util.py"}, paths)
	assert.Contains(t, testutil.Rules(decoded.Files[0].Findings), models.RuleDeadAfterTerminal)
	assert.Equal(t, []string{models.RuleCleanCode}, testutil.Rules(decoded.Files[1].Findings))
	assert.Equal(t, 3, decoded.Summary.Files)
}

func TestAnalyzeTextDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "app.py"), deadCode)

	out, err := execute(t, "analyze", "--no-cache", "--no-progress", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "app.py")
	assert.Contains(t, out, models.RuleDeadAfterTerminal)
	assert.Contains(t, out, "1 files analyzed")
}

func TestAnalyzePolicyFails(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "run.py"), injectable)

	out, err := execute(t, "analyze", "--policy", "--no-cache", "--no-progress", "--no-color")

	var exit *exitError
	require.True(t, errors.As(err, &exit), "expected exitError, got %v", err)
	assert.Equal(t, 1, exit.code)
	assert.Contains(t, out, "Policy: FAIL (errors_present)")
}

func TestAnalyzePolicyPasses(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "ok.py"), "x = 1\nprint(x)\n")

	out, err := execute(t, "analyze", "--policy", "--no-cache", "--no-progress", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Policy: PASS (within_policy_limits)")
}

func TestAnalyzeUsesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.CreateFileTree(t, dir, map[string]string{
		"app.py":     deadCode,
		"sieve.toml": "[analysis]\ncontrolflow = false\n\n[output]\nformat = \"json\"\n",
	})

	out, err := execute(t, "analyze", "--no-cache", "--no-progress")
	require.NoError(t, err)

	var decoded struct {
		Files []models.FileResult `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	require.Len(t, decoded.Files, 1)
	assert.NotContains(t, testutil.Rules(decoded.Files[0].Findings), models.RuleDeadAfterTerminal)
}

func TestAnalyzeSARIFToFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "app.py"), deadCode)
	target := filepath.Join(dir, "out", "report.sarif")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))

	_, err := execute(t, "analyze", "-f", "sarif", "-o", target, "--no-cache", "--no-progress", "app.py")
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "2.1.0"`)
	assert.Contains(t, string(data), models.RuleDeadAfterTerminal)
}

func TestAnalyzeCacheReuse(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "app.py"), deadCode)

	first, err := execute(t, "analyze", "-f", "json", "--no-progress")
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, ".sieve", "cache"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	second, err := execute(t, "analyze", "-f", "json", "--no-progress")
	require.NoError(t, err)
	assert.JSONEq(t, first, second)
}

func TestCacheStatsAndClear(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "app.py"), deadCode)
	testutil.WriteFile(t, filepath.Join(dir, "other.py"), "x = 1\nprint(x)\n")

	_, err := execute(t, "analyze", "--no-progress")
	require.NoError(t, err)

	out, err := execute(t, "cache", "stats", "-f", "json")
	require.NoError(t, err)
	var stats struct {
		Entries int `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Entries)

	out, err = execute(t, "cache", "clear", "app.py")
	require.NoError(t, err)
	assert.Contains(t, out, "Invalidated 1")

	out, err = execute(t, "cache", "stats", "-f", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Entries)

	out, err = execute(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared")
	_, err = os.Stat(filepath.Join(dir, ".sieve", "cache"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAnalyzeSince(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	testutil.WriteFile(t, filepath.Join(dir, "old.py"), deadCode)

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("old.py")
	require.NoError(t, err)
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	testutil.WriteFile(t, filepath.Join(dir, "new.py"), deadCode)

	out, err := execute(t, "analyze", "-f", "json", "--since", "HEAD", "--no-cache", "--no-progress")
	require.NoError(t, err)

	var decoded struct {
		Files []models.FileResult `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	require.Len(t, decoded.Files, 1)
	assert.Equal(t, "new.py", decoded.Files[0].Path)

	_, err = execute(t, "analyze", "--since", "no-such-ref", "--no-cache")
	assert.Error(t, err)
}

func TestAnalyzeErrors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "app.py"), deadCode)

	_, err := execute(t, "analyze", "-f", "xml", "--no-cache")
	assert.ErrorContains(t, err, `unknown format "xml"`)

	_, err = execute(t, "analyze", "--no-cache", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestAnalyzeNoFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "analyze", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "No Python files found")
}

func TestExplain(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "explain", "dfg_unused_variable")
	require.NoError(t, err)
	assert.Contains(t, out, models.RuleUnusedVariable)
	assert.Contains(t, out, "How to fix")

	out, err = execute(t, "explain", "-f", "json", models.RuleTaintSinkReached)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry), out)
	assert.Equal(t, models.RuleTaintSinkReached, entry["id"])

	_, err = execute(t, "explain", "NOT_A_RULE")
	assert.ErrorContains(t, err, "unknown rule")
}

func TestRules(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "rules", "-f", "json")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries), out)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e["id"].(string))
	}
	assert.Contains(t, ids, models.RuleCleanCode)
	assert.Contains(t, ids, models.RuleSyntaxError)
	assert.IsNonDecreasing(t, ids)
}

func TestConfigInitValidateShow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created sieve.toml")

	_, err = execute(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid: sieve.toml")

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Configuration from: sieve.toml")
	assert.Contains(t, out, "[analysis]")
}

func TestConfigValidateInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	testutil.WriteFile(t, filepath.Join(dir, "bad.toml"), "[output]\nformat = \"xml\"\n")

	out, err := execute(t, "config", "validate", "-c", "bad.toml")

	var exit *exitError
	require.True(t, errors.As(err, &exit), "expected exitError, got %v", err)
	assert.Contains(t, out, "Configuration validation failed")
}

func TestConfigShowDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Default configuration"), out)
}

func TestWatchErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "watch", "a", "b")
	assert.Error(t, err)

	_, err = execute(t, "watch", "missing")
	assert.ErrorContains(t, err, "watch missing")
}

func TestGetPaths(t *testing.T) {
	assert.Equal(t, []string{"."}, getPaths(nil))
	assert.Equal(t, []string{"a", "b"}, getPaths([]string{"a", "b"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}

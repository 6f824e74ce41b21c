package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/cache"
	"github.com/panbanda/sieve/internal/fileproc"
	"github.com/panbanda/sieve/internal/output"
	"github.com/panbanda/sieve/internal/progress"
	"github.com/panbanda/sieve/internal/scanner"
	"github.com/panbanda/sieve/internal/vcs"
	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/pipeline"
	"github.com/panbanda/sieve/pkg/policy"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze [path...]",
	Aliases: []string{"a"},
	Short:   "Analyze Python files and report findings",
	Long: `Scans the given files and directories (the current directory by default)
for Python sources, honoring .gitignore and the configured exclusions, and
runs every enabled analysis pass on each file.

Examples:
  sieve analyze                     # Analyze the current directory
  sieve analyze src/ app.py         # Analyze specific paths
  sieve analyze -f sarif -o out.sarif
  sieve analyze --policy            # Exit 1 when the policy fails
  sieve analyze --since main        # Only files changed since main`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("format", "f", "", "Output format: text, json, markdown, yaml, toon, sarif (default from config)")
	analyzeCmd.Flags().StringP("output", "o", "", "Write output to file")
	analyzeCmd.Flags().Bool("no-cache", false, "Disable caching")
	analyzeCmd.Flags().Bool("no-progress", false, "Hide the progress bar")
	analyzeCmd.Flags().Bool("no-color", false, "Disable colored output")
	analyzeCmd.Flags().Bool("policy", false, "Evaluate the policy and exit 1 when it fails")
	analyzeCmd.Flags().IntP("workers", "j", 0, "Concurrent workers (default from config, 0 means 2x CPUs)")
	analyzeCmd.Flags().String("since", "", "Only analyze files changed since this git revision, including uncommitted changes")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := loaded.Config

	noCache, _ := cmd.Flags().GetBool("no-cache")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	noColor, _ := cmd.Flags().GetBool("no-color")
	withPolicy, _ := cmd.Flags().GetBool("policy")
	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = cfg.Analysis.Workers
	}

	format := cfg.Output.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}
	outFormat := output.ParseFormat(format)
	if outFormat == output.FormatText && !strings.EqualFold(format, "text") {
		return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(config.Formats, ", "))
	}

	var spinner *progress.Tracker
	if !noProgress {
		spinner = progress.NewSpinner("Scanning")
	}
	files, err := scanner.NewScanner(cfg).Scan(getPaths(args))
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		files, err = changedOnly(cmd.Context(), files, since)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No Python files found")
		return nil
	}
	logger.Debug("files discovered", "count", len(files))

	c, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !noCache, cache.Fingerprint(version, cfg))
	if err != nil {
		logger.Warn("cache disabled", "dir", cfg.Cache.Dir, "error", err)
		c, _ = cache.New("", 0, false, "")
	}

	engine := pipeline.New(append(pipeline.FromConfig(cfg), pipeline.WithLogger(logger))...)
	logger.Debug("engine ready", "passes", engine.Passes(), "files", len(files))

	var tracker *progress.Tracker
	if !noProgress && len(files) > 1 {
		tracker = progress.NewTracker("Analyzing", len(files))
	}

	results, perrs := fileproc.MapFiles(cmd.Context(), files,
		func(ctx context.Context, psr *parser.Parser, path string) (models.FileResult, error) {
			return analyzeFile(ctx, engine, c, psr, path)
		},
		fileproc.WithWorkers(workers),
		fileproc.WithParserOptions(cfg.ParserOptions()...),
		fileproc.WithProgress(tracker.Tick),
	)
	var errs []string
	if perrs != nil && perrs.HasErrors() {
		tracker.FinishError(perrs)
	} else {
		tracker.FinishSuccess()
	}
	if perrs != nil {
		for _, e := range perrs.Errors {
			errs = append(errs, e.Error())
			logger.Warn("file skipped", "path", e.Path, "error", e.Err)
		}
	}

	var verdict *policy.Result
	if withPolicy {
		v := policy.EvaluateFiles(results, cfg.PolicySettings())
		verdict = &v
	}

	outputFile, _ := cmd.Flags().GetString("output")
	colored := cfg.Output.Color && !noColor && !color.NoColor
	var formatter *output.Formatter
	if outputFile != "" {
		formatter, err = output.NewFormatter(outFormat, outputFile, false)
		if err != nil {
			return err
		}
		defer formatter.Close()
	} else {
		formatter = output.NewWriterFormatter(cmd.OutOrStdout(), outFormat, colored)
	}

	if err := formatter.Output(output.NewResults(results, verdict, errs)); err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	if verdict != nil && !verdict.Passed {
		return &exitError{code: 1}
	}
	return nil
}

// changedOnly keeps the files the enclosing repository reports as changed
// since rev.
func changedOnly(ctx context.Context, files []string, rev string) ([]string, error) {
	repo, err := vcs.Open(".")
	if err != nil {
		return nil, err
	}
	changed, err := repo.ChangedSince(ctx, rev)
	if err != nil {
		return nil, err
	}
	logger.Debug("changed files", "since", rev, "count", len(changed))

	var kept []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		if _, ok := slices.BinarySearch(changed, abs); ok {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// analyzeFile returns the cached result for path when its content is
// unchanged, and analyzes and caches it otherwise.
func analyzeFile(ctx context.Context, engine *pipeline.Engine, c *cache.Cache, psr *parser.Parser, path string) (models.FileResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return models.FileResult{}, err
	}
	if findings, ok := c.Get(path, source); ok {
		return models.FileResult{Path: path, Language: string(parser.DetectLanguage(path)), Findings: findings}, nil
	}

	result, err := engine.AnalyzeSource(ctx, psr, source, path)
	if err != nil {
		return models.FileResult{}, err
	}
	if err := c.Put(path, source, result.Findings); err != nil {
		logger.Debug("cache write failed", "path", path, "error", err)
	}
	return result, nil
}

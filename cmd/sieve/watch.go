package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/output"
	"github.com/panbanda/sieve/pkg/config"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/parser"
	"github.com/panbanda/sieve/pkg/pipeline"
	"github.com/panbanda/sieve/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-analyze Python files as they change",
	Long: `Watches a directory tree (the current directory by default) and analyzes
each Python file again whenever it is saved. Excluded directories and
patterns from the configuration are not watched. The configuration file
is looked up in the watched directory.

Examples:
  sieve watch
  sieve watch src/ --debounce 1s -f json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("format", "f", "text", "Output format: text, json, markdown, yaml, toon")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "How long a file must be unchanged before it is analyzed")
	watchCmd.Flags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := getPaths(args)[0]
	loaded, err := loadConfig(config.WithDir(root))
	if err != nil {
		return err
	}
	cfg := loaded.Config

	format, _ := cmd.Flags().GetString("format")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	noColor, _ := cmd.Flags().GetBool("no-color")

	w, err := watch.New(root, cfg, watch.WithDebounce(debounce), watch.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	defer w.Close()
	logger.Debug("watcher started", "root", root, "dirs", len(w.Watched()))

	engine := pipeline.New(append(pipeline.FromConfig(cfg), pipeline.WithLogger(logger))...)
	psr := parser.New(cfg.ParserOptions()...)
	defer psr.Close()

	colored := cfg.Output.Color && !noColor && !color.NoColor
	formatter := output.NewWriterFormatter(cmd.OutOrStdout(), output.ParseFormat(format), colored)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", root)
	return w.Run(cmd.Context(), func(path string) {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		header := rel + " changed"
		if formatter.Colored() {
			header = color.New(color.Bold).Sprint(header)
		}
		fmt.Fprintf(out, "\n%s\n", header)
		err = watchAnalyze(cmd.Context(), engine, psr, formatter, path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			formatter.Warning("%s was removed before it could be analyzed", rel)
		case err != nil:
			formatter.Error("%v", err)
		}
	})
}

func watchAnalyze(ctx context.Context, engine *pipeline.Engine, psr *parser.Parser, formatter *output.Formatter, path string) error {
	started := time.Now()
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := engine.AnalyzeSource(ctx, psr, source, path)
	if err != nil {
		return err
	}
	logger.Debug("file analyzed", "path", path, "findings", len(result.Findings), "elapsed", time.Since(started))
	return formatter.Output(output.NewResults([]models.FileResult{result}, nil, nil))
}

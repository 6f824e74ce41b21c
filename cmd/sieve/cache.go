package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/cache"
	"github.com/panbanda/sieve/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the analysis cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count, size and age",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [files...]",
	Short: "Remove cached results",
	Long: `Removes every cached result, or only those of the given files.

Examples:
  sieve cache clear
  sieve cache clear app.py pkg/util.py`,
	RunE: runCacheClear,
}

func init() {
	cacheStatsCmd.Flags().StringP("format", "f", "text", "Output format: text, json, markdown, yaml, toon")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*cache.Cache, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled, cache.Fingerprint(version, cfg))
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	if !c.Enabled() {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled")
		return nil
	}
	stats, err := c.GetStats()
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}
	rows := [][]string{
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Total size", fmt.Sprintf("%d bytes", stats.TotalSize)},
		{"Oldest", stats.OldestAge.Round(1e9).String()},
		{"Newest", stats.NewestAge.Round(1e9).String()},
	}
	table := output.NewTable("Cache", []string{"Metric", "Value"}, rows, nil, stats)
	return stdoutFormatter(cmd).Output(table)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
		return nil
	}
	for _, path := range args {
		if err := c.Invalidate(filepath.Clean(path)); err != nil {
			return fmt.Errorf("invalidating %s: %w", path, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d cached result(s)\n", len(args))
	return nil
}

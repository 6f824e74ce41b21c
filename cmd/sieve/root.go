package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/logging"
	"github.com/panbanda/sieve/pkg/config"
)

var (
	cfgFile      string
	logFile      string
	verbose      bool
	pprofPrefix  string
	pprofCPUFile *os.File

	logger    = logging.Discard()
	logCloser io.Closer
)

// exitError carries a process exit code without an error message, for
// outcomes such as a failed policy that the command already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Deterministic static analysis for Python",
	Long: `Sieve analyzes Python files for unreachable code, use-before-assignment,
unused and shadowed variables, untrusted data reaching dangerous sinks,
and structural problems. Every finding carries a stable rule id, its
enclosing scope and, where safe, a textual fix.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if pprofPrefix != "" {
			f, err := os.Create(pprofPrefix + ".cpu.pprof")
			if err != nil {
				return fmt.Errorf("failed to create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return fmt.Errorf("failed to start CPU profile: %w", err)
			}
			pprofCPUFile = f
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			logCloser.Close()
			logCloser = nil
		}
		if pprofPrefix != "" {
			pprof.StopCPUProfile()
			if pprofCPUFile != nil {
				pprofCPUFile.Close()
				color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
			}

			memFile, err := os.Create(pprofPrefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC()
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (TOML, YAML, or JSON)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&pprofPrefix, "pprof", "", "Enable pprof profiling (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)")
}

// loadConfig loads the configuration named by --config, or the first one
// found in the search directory (the working directory unless opts name
// another), and sets up logging from it.
func loadConfig(opts ...config.LoadOption) (*config.LoadResult, error) {
	if cfgFile != "" {
		opts = append(opts, config.WithPath(cfgFile))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}

	logCfg := result.Config.Log
	if logFile != "" {
		logCfg.File = logFile
	}
	var l *slog.Logger
	l, logCloser = logging.New(logCfg, verbose)
	logger = l
	logger.Debug("configuration loaded", "source", result.Source)
	return result, nil
}

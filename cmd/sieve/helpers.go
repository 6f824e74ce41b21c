package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/output"
)

// getPaths returns paths from args, defaulting to ["."]
func getPaths(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// stdoutFormatter renders to the command's output stream in the format
// named by its --format flag. Color follows terminal detection.
func stdoutFormatter(cmd *cobra.Command) *output.Formatter {
	format, _ := cmd.Flags().GetString("format")
	return output.NewWriterFormatter(cmd.OutOrStdout(), output.ParseFormat(format), !color.NoColor)
}

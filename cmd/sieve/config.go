package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validates a sieve configuration file against the configuration schema
and checks its values.

Examples:
  sieve config validate                  # Validates default config locations
  sieve config validate -c sieve.toml    # Validates specific file`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Shows the merged configuration from defaults and config file as TOML.

Examples:
  sieve config show              # Show effective config
  sieve config show -c sieve.toml`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Creates a sieve.toml configuration file in the current directory with
the default settings. Use --output to choose another location.

Examples:
  sieve config init                      # Creates sieve.toml
  sieve config init -o .sieve/config.toml
  sieve config init --force              # Overwrite existing config file`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringP("output", "o", "sieve.toml", "Output file path")
	configInitCmd.Flags().Bool("force", false, "Overwrite existing config file")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result, err := loadConfig()
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), color.RedString("Configuration validation failed:"))
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", err)
		return &exitError{code: 1}
	}

	if result.Source != "" {
		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Configuration valid: %s", result.Source))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("No config file found. Default configuration is valid."))
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	result, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Source != "" {
		fmt.Fprintf(out, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(out, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(out, string(content))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := "# sieve configuration. Run 'sieve config validate' after editing.\n\n"
	if err := os.WriteFile(outputPath, append([]byte(header), content...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Created %s", outputPath))
	return nil
}

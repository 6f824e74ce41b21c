package main

import (
	"github.com/spf13/cobra"

	"github.com/panbanda/sieve/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP (Model Context Protocol) server for LLM tool integration",
	Long: `Starts an MCP server over stdio transport that exposes sieve's analyzers
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "sieve": {
        "command": "sieve",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_code    Analyze inline Python source
  - analyze_file    Analyze a Python file on disk
  - explain_rule    Explain a rule id and its remediation
  - list_scopes     List module, class and function scopes with line spans`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	return mcpserver.NewServer(version, loaded.Config, logger).Run(cmd.Context())
}

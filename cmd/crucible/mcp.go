package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/crucible/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the interpreter over MCP on stdio",
	Long: `Run the Model Context Protocol server on stdio.

Agent hosts launch this as a subprocess. Tools: execute_python_code,
reset_interpreter, get_file. Resources: output://generated-files and
output://file/{filename}.

Example host configuration:
  crucible mcp --workspace /path/to/output`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	engine, store, _, err := buildEngine()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	slog.Info("starting MCP server", "workspace", engine.Workspace())

	s := mcpserver.New(engine)
	return mcpserver.ServeStdio(s)
}

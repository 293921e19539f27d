package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	workspaceFlag string
	profileFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Crucible - local Python code interpreter",
	Long: `Crucible runs Python code in a workspace directory, captures output and
errors, and reports generated files (plots, data) in a transport-ready form.

It serves agents over MCP (stdio), local tools over HTTP, and humans through
an interactive REPL.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "Workspace directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Interpreter profile to use (e.g. plotting, data)")
}

func main() {
	// Everything logs to stderr: the mcp command shares stdout with the
	// protocol transport.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

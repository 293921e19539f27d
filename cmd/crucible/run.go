package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/crucible/internal/mcpserver"
)

var codeFlag string

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Execute a Python file or inline code once",
	Long: `Execute Python code against the workspace and print the result.

Reads code from a file argument, from -e, or from stdin when the argument
is "-".

Examples:
  crucible run script.py
  crucible run -e "print(sum(range(100)))"
  cat script.py | crucible run -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&codeFlag, "code", "e", "", "Inline code to execute")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code := codeFlag
	if code == "" {
		if len(args) == 0 {
			return fmt.Errorf("provide a file argument, -e, or '-' for stdin")
		}
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("reading code: %w", err)
		}
		code = string(data)
	}

	engine, store, _, err := buildEngine()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	result, err := engine.Execute(context.Background(), code)
	if err != nil {
		return err
	}

	fmt.Println(mcpserver.FormatResult(result))

	if result.Error != nil {
		os.Exit(1)
	}
	return nil
}

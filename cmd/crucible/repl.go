package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/crucible/internal/artifacts"
	"github.com/michaelbrown/crucible/internal/interp"
	"github.com/michaelbrown/crucible/internal/mcpserver"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive interpreter session",
	Long: `Start an interactive session against the workspace.

Each line is executed as Python. Commands:
  /paste   read lines until a lone "." and execute them as one block
  /files   list workspace files
  /reset   clear the workspace and session state
  /quit    exit`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	engine, store, _, err := buildEngine()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	fmt.Printf("Crucible - Python interpreter\n")
	fmt.Printf("Workspace: %s\n", engine.Workspace())
	fmt.Printf("Type /quit to exit, /paste for multi-line input\n\n")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mpy>\033[0m ",
		HistoryFile:     "/tmp/crucible_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			fmt.Println("Goodbye!")
			return nil
		case "/reset":
			engine.Reset()
			fmt.Println("(workspace cleared)")
			continue
		case "/files":
			printFiles(engine)
			continue
		case "/paste":
			block, err := readBlock(rl)
			if err != nil {
				return err
			}
			input = block
			if strings.TrimSpace(input) == "" {
				continue
			}
		}

		result, err := engine.Execute(context.Background(), input)
		if err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n", err)
			continue
		}
		fmt.Println(mcpserver.FormatResult(result))
		fmt.Println()
	}
}

// readBlock collects lines until a lone "." so indented code can be pasted.
func readBlock(rl *readline.Instance) (string, error) {
	fmt.Println("(paste code, end with a lone \".\")")
	var lines []string
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return "", nil
			}
			return "", err
		}
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func printFiles(engine *interp.Interpreter) {
	files := engine.ScanWorkspace()
	if len(files) == 0 {
		fmt.Println("(workspace is empty)")
		return
	}
	for _, f := range files {
		if f.Filename == artifacts.PlaceholderName {
			continue
		}
		fmt.Printf("  %-30s %-7s %d bytes\n", f.Filename, f.Type, f.Size)
	}
}

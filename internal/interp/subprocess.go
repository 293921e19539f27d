package interp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// harnessSource runs a payload file inside a fresh namespace and writes a
// structured classification of any exception to a side-channel file, keeping
// stdout and stderr free for the user code's own output.
const harnessSource = `import json
import sys

payload_path = sys.argv[1]
error_path = sys.argv[2]

with open(payload_path, "r", encoding="utf-8") as f:
    source = f.read()

namespace = {"__name__": "__main__", "__builtins__": __builtins__}
try:
    exec(compile(source, "<cell>", "exec"), namespace)
except Exception as exc:
    sys.stdout.flush()
    sys.stderr.flush()
    with open(error_path, "w", encoding="utf-8") as f:
        json.dump({"kind": type(exc).__name__, "message": str(exc)}, f)
    sys.exit(1)
`

// SubprocessStrategy runs code with a local Python interpreter. It is the
// unconditional fallback: it needs nothing beyond a python binary on PATH.
//
// Each execution gets its own child process whose working directory is the
// workspace, so relative writes land there without mutating the host
// process's working directory.
type SubprocessStrategy struct {
	Python  string // interpreter binary, e.g. "python3"
	Workdir string

	// Optional line callbacks, invoked as output arrives. Used by the
	// streaming HTTP surface.
	OnStdout func(line string)
	OnStderr func(line string)
}

// NewSubprocessStrategy creates the fallback strategy.
func NewSubprocessStrategy(python, workdir string) *SubprocessStrategy {
	if python == "" {
		python = "python3"
	}
	return &SubprocessStrategy{Python: python, Workdir: workdir}
}

func (s *SubprocessStrategy) Name() string { return "subprocess" }

func (s *SubprocessStrategy) Run(ctx context.Context, code string) (*Output, error) {
	// Scratch files live outside the workspace so they never show up in
	// artifact scans.
	tmpDir, err := os.MkdirTemp("", "crucible-exec-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	harnessPath := filepath.Join(tmpDir, "harness.py")
	if err := os.WriteFile(harnessPath, []byte(harnessSource), 0o644); err != nil {
		return nil, fmt.Errorf("writing harness: %w", err)
	}
	payloadPath := filepath.Join(tmpDir, "payload.py")
	if err := os.WriteFile(payloadPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}
	errPath := filepath.Join(tmpDir, "error.json")

	cmd := exec.CommandContext(ctx, s.Python, harnessPath, payloadPath, errPath)
	cmd.Dir = s.Workdir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.Python, err)
	}

	out := &Output{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Stdout = collectLines(stdoutPipe, s.OnStdout)
	}()
	go func() {
		defer wg.Done()
		out.Stderr = collectLines(stderrPipe, s.OnStderr)
	}()
	wg.Wait()

	runErr := cmd.Wait()

	if execErr := readExecError(errPath); execErr != nil {
		out.Err = execErr
		return out, nil
	}

	if runErr != nil {
		if ctx.Err() != nil {
			out.Err = &ExecError{
				Kind:    "TimeoutError",
				Message: "execution cancelled: " + ctx.Err().Error(),
			}
			return out, nil
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Nonzero exit without a classification file, e.g. sys.exit(2).
			out.Err = &ExecError{
				Kind:    "SystemExit",
				Message: fmt.Sprintf("interpreter exited with status %d", exitErr.ExitCode()),
			}
			return out, nil
		}
		return nil, fmt.Errorf("running %s: %w", s.Python, runErr)
	}

	return out, nil
}

// collectLines reads until the pipe closes. Lines can be arbitrarily long
// (one giant print is legitimate output), so this reads with no per-line
// cap; a capped reader would stop consuming and deadlock the child against
// the full pipe.
func collectLines(r io.Reader, onLine func(string)) []string {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			lines = append(lines, line)
			if onLine != nil {
				onLine(line)
			}
		}
		if err != nil {
			return lines
		}
	}
}

func readExecError(path string) *ExecError {
	data, err := os.ReadFile(path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var e ExecError
	if err := json.Unmarshal(data, &e); err != nil {
		return &ExecError{Kind: "Exception", Message: string(data)}
	}
	return &e
}

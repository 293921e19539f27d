// Package interp is the execution engine: it runs Python code strings
// against a workspace directory, captures output and faults, and reports
// files generated as side effects.
package interp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/crucible/internal/artifacts"
	"github.com/michaelbrown/crucible/internal/history"
	"github.com/michaelbrown/crucible/internal/llm"
)

// ErrNotFound is returned by GetFile for names that do not resolve to a
// regular file inside the workspace.
var ErrNotFound = errors.New("file not found")

const (
	defaultTimeout   = 30 * time.Second
	defaultFigureDPI = 150
)

// Options configures an Interpreter.
type Options struct {
	// Workspace is the directory where executed code's file side effects
	// land. Created on first use, cleared by Reset.
	Workspace string

	// Python is the interpreter binary for the subprocess fallback.
	// Defaults to "python3".
	Python string

	// Timeout bounds a single execution. Zero means the default; negative
	// disables the deadline entirely.
	Timeout time.Duration

	// FigureDPI is the resolution for auto-saved figures.
	FigureDPI int

	// AutoSaveFigures redirects the plotting library's show call into
	// saving a uniquely named PNG in the workspace.
	AutoSaveFigures bool

	// ExtraPreamble is appended verbatim to the generated setup code.
	ExtraPreamble []string
}

// Interpreter owns one workspace and runs at most one execution at a time.
// All state, including the pre-execution snapshot and the service-side
// conversation, belongs to the instance; there is no package-level state.
type Interpreter struct {
	mu       sync.Mutex
	opts     Options
	primary  *ServiceStrategy
	fallback *SubprocessStrategy
	store    history.Store
	prior    map[string]struct{}
}

// New creates an Interpreter. The service client and history store are both
// optional: without a client the subprocess fallback handles everything,
// and without a store executions are simply not recorded.
func New(opts Options, service llm.Client, store history.Store) (*Interpreter, error) {
	if opts.Workspace == "" {
		return nil, errors.New("workspace directory is required")
	}
	abs, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	opts.Workspace = abs
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	if err := os.MkdirAll(opts.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	return &Interpreter{
		opts:     opts,
		primary:  NewServiceStrategy(service),
		fallback: NewSubprocessStrategy(opts.Python, opts.Workspace),
		store:    store,
	}, nil
}

// Workspace returns the absolute workspace path.
func (i *Interpreter) Workspace() string { return i.opts.Workspace }

// Execute runs a code string and always returns a well-formed Result when
// the engine itself is healthy. Faults raised by the code are carried in
// Result.Error; only infrastructure failures (workspace unusable, payload
// unwritable) surface as a Go error.
func (i *Interpreter) Execute(ctx context.Context, code string) (*Result, error) {
	return i.execute(ctx, code, nil, nil)
}

// ExecuteStreaming is Execute with per-line callbacks for output produced by
// the subprocess strategy. The service strategy replies in one piece, so the
// callbacks only fire on the fallback path.
func (i *Interpreter) ExecuteStreaming(ctx context.Context, code string, onStdout, onStderr func(string)) (*Result, error) {
	return i.execute(ctx, code, onStdout, onStderr)
}

func (i *Interpreter) execute(ctx context.Context, code string, onStdout, onStderr func(string)) (*Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()

	if err := os.MkdirAll(i.opts.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	i.prior = artifacts.Snapshot(i.opts.Workspace)

	prepared := buildPreamble(i.opts.Workspace, i.opts) + "\n" + code

	if i.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()
	}

	i.fallback.OnStdout = onStdout
	i.fallback.OnStderr = onStderr
	defer func() {
		i.fallback.OnStdout = nil
		i.fallback.OnStderr = nil
	}()

	var out *Output
	var lastErr error
	for _, strategy := range []Strategy{i.primary, i.fallback} {
		o, err := strategy.Run(ctx, prepared)
		if err != nil {
			slog.Warn("execution strategy failed", "strategy", strategy.Name(), "error", err)
			lastErr = err
			continue
		}
		out = o
		break
	}
	if out == nil {
		// Both strategies failed; report the fallback's own failure as the
		// execution error so the caller still gets a well-formed result.
		out = &Output{Err: &ExecError{Kind: "ExecutorError", Message: lastErr.Error()}}
	}

	res := &Result{
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
		Error:   out.Err,
		Results: out.Results,
	}
	res.GeneratedFiles = artifacts.Scan(i.opts.Workspace, i.prior)

	i.record(code, res, time.Since(start))
	return res, nil
}

// record persists the execution when a history store is attached. Storage
// failures are logged, never surfaced.
func (i *Interpreter) record(code string, res *Result, elapsed time.Duration) {
	if i.store == nil {
		return
	}
	rec := &history.Record{
		ID:        uuid.NewString(),
		Code:      code,
		Stdout:    strings.Join(res.Stdout, "\n"),
		Stderr:    strings.Join(res.Stderr, "\n"),
		FileCount: len(res.GeneratedFiles),
		Duration:  elapsed,
	}
	if res.Error != nil {
		rec.ErrorKind = res.Error.Kind
		rec.ErrorMessage = res.Error.Message
	}
	if err := i.store.SaveExecution(context.Background(), rec); err != nil {
		slog.Warn("recording execution", "error", err)
	}
}

// Reset deletes everything under the workspace and clears session state.
// Deletion is best effort: a failure on one entry is logged and the rest are
// still removed. Reset never fails the caller.
func (i *Interpreter) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()

	entries, err := os.ReadDir(i.opts.Workspace)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("reading workspace during reset", "error", err)
		}
	} else {
		for _, entry := range entries {
			path := filepath.Join(i.opts.Workspace, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				slog.Warn("deleting workspace entry", "path", path, "error", err)
			}
		}
	}

	i.primary.ResetConversation()
	i.prior = nil
	slog.Info("interpreter reset", "workspace", i.opts.Workspace)
}

// GetFile reads one file by exact name from the workspace. Names containing
// path separators or traversal components never resolve outside the
// workspace; they report ErrNotFound like any other miss. Text files come
// back decoded with invalid byte sequences replaced; everything else is
// base64-encoded.
func (i *Interpreter) GetFile(filename string) (*artifacts.FileRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if filename == "" || filename != filepath.Base(filename) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	path := filepath.Join(i.opts.Workspace, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	rec := &artifacts.FileRecord{
		Filename: filename,
		Path:     path,
		Size:     info.Size(),
		Type:     artifacts.Classify(filepath.Ext(filename)),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	if rec.Type == artifacts.TypeText {
		rec.Content = strings.ToValidUTF8(string(data), "�")
	} else {
		rec.ContentBase64 = base64.StdEncoding.EncodeToString(data)
	}
	return rec, nil
}

// ScanWorkspace lists the whole workspace without diffing against a
// particular execution (the prior set is empty).
func (i *Interpreter) ScanWorkspace() []artifacts.FileRecord {
	i.mu.Lock()
	defer i.mu.Unlock()

	return artifacts.Scan(i.opts.Workspace, nil)
}

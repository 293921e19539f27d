package interp

import (
	"github.com/michaelbrown/crucible/internal/artifacts"
)

// ExecError classifies a fault raised by the executed code. It is data in
// the result, not a Go error: the surrounding Execute call still succeeds.
type ExecError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ExecError) String() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// TextResult is a free-form secondary output from the interpreter service,
// such as commentary produced alongside console output.
type TextResult struct {
	Text string `json:"text"`
}

// Output is what a single execution strategy produces. Stdout and stderr are
// ordered lines; partial output captured before a fault is preserved.
type Output struct {
	Stdout  []string
	Stderr  []string
	Err     *ExecError
	Results []TextResult
}

// Result is the full outcome of one Execute call, including the workspace
// scan performed after the code ran.
type Result struct {
	Stdout         []string               `json:"stdout"`
	Stderr         []string               `json:"stderr"`
	Error          *ExecError             `json:"error,omitempty"`
	Results        []TextResult           `json:"results,omitempty"`
	GeneratedFiles []artifacts.FileRecord `json:"generated_files"`
}

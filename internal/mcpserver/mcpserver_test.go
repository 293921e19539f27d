package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/michaelbrown/crucible/internal/artifacts"
	"github.com/michaelbrown/crucible/internal/interp"
	"github.com/michaelbrown/crucible/internal/llm"
)

// fakeClient replays canned service replies so tool handlers can be tested
// without a Python interpreter or a live backend.
type fakeClient struct {
	replies []string
}

func (f *fakeClient) ChatCompletion(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return &llm.Response{Message: llm.AssistantMessage(reply)}, nil
}

func newTestHandlers(t *testing.T, replies ...string) *Handlers {
	t.Helper()
	var client llm.Client
	if len(replies) > 0 {
		client = &fakeClient{replies: replies}
	}
	engine, err := interp.New(interp.Options{Workspace: t.TempDir()}, client, nil)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return &Handlers{Interp: engine}
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

func TestHandleExecute(t *testing.T) {
	h := newTestHandlers(t, `{"stdout": ["42"]}`)

	result, err := h.HandleExecute(context.Background(), toolRequest("execute_python_code", map[string]any{
		"code": "print(42)",
	}))
	if err != nil {
		t.Fatalf("HandleExecute: %v", err)
	}
	if result.IsError {
		t.Error("successful execution should not set IsError")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "=== STDOUT ===") || !strings.Contains(text, "42") {
		t.Errorf("text = %q", text)
	}
}

func TestHandleExecuteMissingCode(t *testing.T) {
	h := newTestHandlers(t, "{}")

	result, err := h.HandleExecute(context.Background(), toolRequest("execute_python_code", map[string]any{}))
	if err != nil {
		t.Fatalf("HandleExecute: %v", err)
	}
	if !result.IsError {
		t.Error("missing code should set IsError")
	}
	if !strings.Contains(resultText(t, result), "required") {
		t.Errorf("text = %q", resultText(t, result))
	}
}

func TestHandleExecuteReportsFault(t *testing.T) {
	h := newTestHandlers(t, `{"error": {"kind": "ZeroDivisionError", "message": "division by zero"}}`)

	result, err := h.HandleExecute(context.Background(), toolRequest("execute_python_code", map[string]any{
		"code": "1/0",
	}))
	if err != nil {
		t.Fatalf("HandleExecute: %v", err)
	}
	if !result.IsError {
		t.Error("a fault should set IsError")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "=== ERROR ===") || !strings.Contains(text, "ZeroDivisionError") {
		t.Errorf("text = %q", text)
	}
}

func TestHandleExecuteTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", maxToolOutput+500)
	h := newTestHandlers(t, fmt.Sprintf(`{"stdout": [%q]}`, long))

	result, err := h.HandleExecute(context.Background(), toolRequest("execute_python_code", map[string]any{
		"code": "print('x' * 5000)",
	}))
	if err != nil {
		t.Fatalf("HandleExecute: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasSuffix(text, "(output truncated)") {
		t.Error("long output should be truncated")
	}
	if len(text) > maxToolOutput+100 {
		t.Errorf("truncated text still %d chars", len(text))
	}
}

func TestHandleExecuteTruncationKeepsValidUTF8(t *testing.T) {
	// The formatted report's byte length crosses the truncation cap in the
	// middle of a two-byte rune.
	long := strings.Repeat("é", maxToolOutput)
	h := newTestHandlers(t, fmt.Sprintf(`{"stdout": [%q]}`, long))

	result, err := h.HandleExecute(context.Background(), toolRequest("execute_python_code", map[string]any{
		"code": "print('é' * 4000)",
	}))
	if err != nil {
		t.Fatalf("HandleExecute: %v", err)
	}
	text := resultText(t, result)
	if !strings.HasSuffix(text, "(output truncated)") {
		t.Error("long output should be truncated")
	}
	if !utf8.ValidString(text) {
		t.Error("truncation split a rune")
	}
}

func TestHandleReset(t *testing.T) {
	h := newTestHandlers(t)
	ws := h.Interp.Workspace()
	if err := os.WriteFile(filepath.Join(ws, "junk.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleReset(context.Background(), toolRequest("reset_interpreter", nil))
	if err != nil {
		t.Fatalf("HandleReset: %v", err)
	}
	if result.IsError {
		t.Error("reset should not fail")
	}

	entries, err := os.ReadDir(ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("workspace not cleared: %d entries", len(entries))
	}
}

func TestHandleGetFileText(t *testing.T) {
	h := newTestHandlers(t)
	if err := os.WriteFile(filepath.Join(h.Interp.Workspace(), "data.csv"), []byte("a,b\n1,2"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleGetFile(context.Background(), toolRequest("get_file", map[string]any{
		"filename": "data.csv",
	}))
	if err != nil {
		t.Fatalf("HandleGetFile: %v", err)
	}
	if result.IsError {
		t.Fatal("existing file should not be an error")
	}

	var env map[string]string
	if err := json.Unmarshal([]byte(resultText(t, result)), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env["filename"] != "data.csv" || env["encoding"] != "utf-8" {
		t.Errorf("envelope = %v", env)
	}
	if env["data"] != "a,b\n1,2" {
		t.Errorf("data = %q", env["data"])
	}
}

func TestHandleGetFileMissing(t *testing.T) {
	h := newTestHandlers(t)

	result, err := h.HandleGetFile(context.Background(), toolRequest("get_file", map[string]any{
		"filename": "absent.png",
	}))
	if err != nil {
		t.Fatalf("HandleGetFile: %v", err)
	}
	if !result.IsError {
		t.Error("missing file should set IsError")
	}

	var env map[string]string
	if err := json.Unmarshal([]byte(resultText(t, result)), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !strings.Contains(env["error"], "absent.png") {
		t.Errorf("error = %q", env["error"])
	}
}

func TestHandleGeneratedFiles(t *testing.T) {
	h := newTestHandlers(t)
	ws := h.Interp.Workspace()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(ws, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "output://generated-files"
	contents, err := h.HandleGeneratedFiles(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleGeneratedFiles: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}

	text := contents[0].(mcp.TextResourceContents)
	var payload struct {
		FileCount int                    `json:"file_count"`
		Files     []artifacts.FileRecord `json:"files"`
	}
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.FileCount != 2 || len(payload.Files) != 2 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHandleFileResource(t *testing.T) {
	h := newTestHandlers(t)
	if err := os.WriteFile(filepath.Join(h.Interp.Workspace(), "note.md"), []byte("# hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "output://file/note.md"
	contents, err := h.HandleFileResource(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleFileResource: %v", err)
	}

	text := contents[0].(mcp.TextResourceContents)
	if text.URI != "output://file/note.md" {
		t.Errorf("uri = %q", text.URI)
	}
	var env map[string]string
	if err := json.Unmarshal([]byte(text.Text), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env["data"] != "# hi" {
		t.Errorf("data = %q", env["data"])
	}
}

func TestFormatResultSections(t *testing.T) {
	res := &interp.Result{
		Stdout: []string{"line1", "line2"},
		Stderr: []string{"warning"},
		Error:  &interp.ExecError{Kind: "ValueError", Message: "bad"},
		Results: []interp.TextResult{
			{Text: "the answer"},
		},
		GeneratedFiles: []artifacts.FileRecord{
			{Filename: "old.txt", Type: artifacts.TypeText},
			{Filename: "new.png", Type: artifacts.TypeImage, IsNew: true},
		},
	}

	text := FormatResult(res)
	for _, want := range []string{
		"=== STDOUT ===\nline1\nline2",
		"=== STDERR ===\nwarning",
		"=== ERROR ===\nValueError: bad",
		"=== RESULT 1 ===\nthe answer",
		"=== GENERATED FILES ===",
		"new.png (image) (new)",
		"old.txt (text)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestFormatResultEmpty(t *testing.T) {
	text := FormatResult(&interp.Result{})
	if text != "Code executed successfully (no output)" {
		t.Errorf("text = %q", text)
	}
}

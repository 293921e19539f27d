// Package mcpserver exposes the interpreter over the Model Context Protocol
// on stdio. Logging must go to stderr only: stdout carries the protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/crucible/internal/artifacts"
	"github.com/michaelbrown/crucible/internal/interp"
)

const maxToolOutput = 4000

// Handlers holds the interpreter behind the MCP surface. Exported so tests
// can call the tool handlers without a stdio transport.
type Handlers struct {
	Interp *interp.Interpreter
}

// New builds the MCP server with all tools, resources, and prompts
// registered.
func New(engine *interp.Interpreter) *server.MCPServer {
	h := &Handlers{Interp: engine}

	s := server.NewMCPServer("crucible-interpreter", "0.1.0")

	s.AddTool(mcp.Tool{
		Name: "execute_python_code",
		Description: "Execute Python code in a local sandbox workspace. " +
			"Captures stdout, stderr, and errors. Generated files (plots, data) are saved " +
			"to the workspace; matplotlib figures shown with plt.show() are auto-saved as PNGs. " +
			"Use get_file to retrieve file contents.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python code to execute. Single line or multi-line block.",
				},
			},
			Required: []string{"code"},
		},
	}, h.HandleExecute)

	s.AddTool(mcp.Tool{
		Name: "reset_interpreter",
		Description: "Reset the interpreter: clears the conversation state of the " +
			"interpreter service and deletes everything in the workspace.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, h.HandleReset)

	s.AddTool(mcp.Tool{
		Name: "get_file",
		Description: "Fetch one file from the workspace by name. Text files come back " +
			"utf-8 decoded; images and binaries come back base64-encoded.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "Exact name of the file in the workspace",
				},
			},
			Required: []string{"filename"},
		},
	}, h.HandleGetFile)

	s.AddResource(mcp.Resource{
		URI:         "output://generated-files",
		Name:        "generated-files",
		Description: "All files currently in the workspace, with base64 content for images.",
		MIMEType:    "application/json",
	}, h.HandleGeneratedFiles)

	s.AddResourceTemplate(mcp.NewResourceTemplate(
		"output://file/{filename}",
		"workspace-file",
		mcp.WithTemplateDescription("One workspace file by name."),
		mcp.WithTemplateMIMEType("application/json"),
	), h.HandleFileResource)

	registerPrompts(s)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// HandleExecute runs a code block and renders the result as the sectioned
// text report agents expect.
func (h *Handlers) HandleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}
	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}

	slog.Info("executing code", "length", len(code))

	result, err := h.Interp.Execute(ctx, code)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	text := FormatResult(result)
	if len(text) > maxToolOutput {
		// Back the cut off to a rune boundary so the report stays valid UTF-8.
		cut := maxToolOutput
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n... (output truncated)"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: result.Error != nil,
	}, nil
}

// HandleReset clears the workspace and session state.
func (h *Handlers) HandleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.Interp.Reset()
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{
			Type: "text",
			Text: "Interpreter reset. Conversation state and workspace files cleared.",
		}},
	}, nil
}

// HandleGetFile fetches one workspace file as a JSON envelope.
func (h *Handlers) HandleGetFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}
	filename, _ := args["filename"].(string)
	if filename == "" {
		return errResult("error: 'filename' is required"), nil
	}

	payload, notFound := h.fileEnvelopeJSON(filename)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: payload}},
		IsError: notFound,
	}, nil
}

// HandleGeneratedFiles serves the full-workspace listing resource.
func (h *Handlers) HandleGeneratedFiles(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	files := h.Interp.ScanWorkspace()

	payload, err := json.MarshalIndent(map[string]any{
		"file_count": len(files),
		"files":      files,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding file listing: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}, nil
}

// HandleFileResource serves output://file/{filename}.
func (h *Handlers) HandleFileResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	filename := strings.TrimPrefix(request.Params.URI, "output://file/")

	payload, _ := h.fileEnvelopeJSON(filename)
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     payload,
		},
	}, nil
}

// fileEnvelopeJSON builds the single-file fetch envelope. A missing file is
// a structured JSON error, never a protocol failure.
func (h *Handlers) fileEnvelopeJSON(filename string) (payload string, notFound bool) {
	rec, err := h.Interp.GetFile(filename)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, interp.ErrNotFound) {
			msg = "file not found: " + filename
		}
		data, _ := json.Marshal(map[string]string{"error": msg})
		return string(data), true
	}

	env := map[string]string{
		"filename": rec.Filename,
		"type":     string(rec.Type),
	}
	if artifacts.IsTextExt(filepath.Ext(rec.Filename)) {
		env["encoding"] = "utf-8"
		env["data"] = rec.Content
	} else {
		env["encoding"] = "base64"
		env["data"] = rec.ContentBase64
	}

	data, err := json.Marshal(env)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
		return string(data), true
	}
	return string(data), false
}

// FormatResult renders an execution result as sectioned text.
func FormatResult(result *interp.Result) string {
	var parts []string

	if len(result.Stdout) > 0 {
		parts = append(parts, "=== STDOUT ===\n"+strings.Join(result.Stdout, "\n"))
	}
	if len(result.Stderr) > 0 {
		parts = append(parts, "=== STDERR ===\n"+strings.Join(result.Stderr, "\n"))
	}
	if result.Error != nil {
		parts = append(parts, "=== ERROR ===\n"+result.Error.String())
	}
	for i, res := range result.Results {
		if res.Text != "" {
			parts = append(parts, fmt.Sprintf("=== RESULT %d ===\n%s", i+1, res.Text))
		}
	}

	if len(result.GeneratedFiles) > 0 {
		var list []string
		for _, f := range result.GeneratedFiles {
			marker := ""
			if f.IsNew {
				marker = " (new)"
			}
			list = append(list, fmt.Sprintf("  - %s (%s)%s", f.Filename, f.Type, marker))
		}
		parts = append(parts, fmt.Sprintf(
			"=== GENERATED FILES ===\n%d file(s) in workspace:\n%s\n\nUse get_file to retrieve file contents.",
			len(result.GeneratedFiles), strings.Join(list, "\n")))
	}

	if len(parts) == 0 {
		return "Code executed successfully (no output)"
	}
	return strings.Join(parts, "\n\n")
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}

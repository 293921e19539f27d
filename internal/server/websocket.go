package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/crucible/internal/interp"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, no cross-origin concerns
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

// wsOutgoing is a message to the client. Stdout and stderr lines stream as
// they are produced; the final message carries the complete result.
type wsOutgoing struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Result  *interp.Result `json:"result,omitempty"`
}

func (s *Server) handleExecuteWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// Executions inherit the request context so they stop when the server
	// shuts down or the connection's handler unwinds.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			slog.Warn("websocket read", "error", err)
			return
		}

		switch msg.Type {
		case "execute":
			if msg.Code == "" {
				wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "'code' is required"})
				continue
			}
			s.streamExecution(ctx, conn, msg.Code)
		case "reset":
			s.interp.Reset()
			wsWriteJSON(conn, wsOutgoing{Type: "reset"})
		default:
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "unknown message type"})
		}
	}
}

// streamExecution runs one code block, forwarding output lines as they
// arrive. One execution per connection at a time: the read loop does not
// continue until this returns.
func (s *Server) streamExecution(ctx context.Context, conn *websocket.Conn, code string) {
	// Output callbacks run on the subprocess reader goroutines; serialize
	// writes to the connection.
	var wsMu sync.Mutex

	onStdout := func(line string) {
		wsMu.Lock()
		wsWriteJSON(conn, wsOutgoing{Type: "stdout", Content: line})
		wsMu.Unlock()
	}
	onStderr := func(line string) {
		wsMu.Lock()
		wsWriteJSON(conn, wsOutgoing{Type: "stderr", Content: line})
		wsMu.Unlock()
	}

	result, err := s.interp.ExecuteStreaming(ctx, code, onStdout, onStderr)
	if err != nil {
		wsMu.Lock()
		wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		wsMu.Unlock()
		return
	}

	wsMu.Lock()
	wsWriteJSON(conn, wsOutgoing{Type: "result", Result: result})
	wsMu.Unlock()
}

func wsWriteJSON(conn *websocket.Conn, msg wsOutgoing) {
	if err := conn.WriteJSON(msg); err != nil {
		slog.Warn("websocket write", "error", err)
	}
}

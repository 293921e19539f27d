package interp

import (
	"context"
	"errors"
	"testing"

	"github.com/michaelbrown/crucible/internal/llm"
)

// fakeClient replays canned responses and records the conversation it saw.
type fakeClient struct {
	replies []string
	err     error
	calls   [][]llm.Message
}

func (f *fakeClient) ChatCompletion(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return &llm.Response{Message: llm.AssistantMessage(reply)}, nil
}

func TestParseServiceOutputEnvelope(t *testing.T) {
	out := parseServiceOutput(`{"stdout": ["1", "2"], "stderr": ["warn"], "results": [{"text": "done"}]}`)

	if len(out.Stdout) != 2 || out.Stdout[0] != "1" {
		t.Errorf("stdout = %v", out.Stdout)
	}
	if len(out.Stderr) != 1 || out.Stderr[0] != "warn" {
		t.Errorf("stderr = %v", out.Stderr)
	}
	if len(out.Results) != 1 || out.Results[0].Text != "done" {
		t.Errorf("results = %v", out.Results)
	}
	if out.Err != nil {
		t.Errorf("unexpected error: %v", out.Err)
	}
}

func TestParseServiceOutputEnvelopeError(t *testing.T) {
	out := parseServiceOutput(`{"stdout": ["partial"], "error": {"kind": "ValueError", "message": "bad input"}}`)

	if out.Err == nil || out.Err.Kind != "ValueError" {
		t.Fatalf("error = %v", out.Err)
	}
	if len(out.Stdout) != 1 {
		t.Error("partial output should be preserved alongside the error")
	}
}

func TestParseServiceOutputProse(t *testing.T) {
	out := parseServiceOutput("The sum is 4950.")

	if len(out.Results) != 1 || out.Results[0].Text != "The sum is 4950." {
		t.Errorf("results = %v", out.Results)
	}
	if len(out.Stdout) != 0 {
		t.Errorf("stdout should be empty, got %v", out.Stdout)
	}
}

func TestParseServiceOutputEmpty(t *testing.T) {
	out := parseServiceOutput("   ")
	if len(out.Stdout) != 0 || len(out.Results) != 0 || out.Err != nil {
		t.Errorf("empty reply should produce empty output: %+v", out)
	}
}

func TestServiceStrategyConversation(t *testing.T) {
	client := &fakeClient{replies: []string{`{"stdout": ["a"]}`}}
	s := NewServiceStrategy(client)

	if _, err := s.Run(context.Background(), "print('a')"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := s.Run(context.Background(), "print('b')"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Second call sees: system, user, assistant, user.
	last := client.calls[len(client.calls)-1]
	if len(last) != 4 {
		t.Fatalf("conversation length = %d, want 4", len(last))
	}
	if last[0].Role != llm.RoleSystem {
		t.Error("conversation should open with the system prompt")
	}

	s.ResetConversation()
	if _, err := s.Run(context.Background(), "print('c')"); err != nil {
		t.Fatalf("Run after reset: %v", err)
	}
	last = client.calls[len(client.calls)-1]
	if len(last) != 2 {
		t.Errorf("conversation after reset = %d messages, want 2", len(last))
	}
}

func TestServiceStrategyErrorDropsTurn(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	s := NewServiceStrategy(client)

	if _, err := s.Run(context.Background(), "print(1)"); err == nil {
		t.Fatal("expected error")
	}

	// The failed turn must not linger in history.
	client.err = nil
	client.replies = []string{"{}"}
	if _, err := s.Run(context.Background(), "print(2)"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	last := client.calls[len(client.calls)-1]
	if len(last) != 2 {
		t.Errorf("conversation = %d messages, want 2 (system + user)", len(last))
	}
}

func TestServiceStrategyUnconfigured(t *testing.T) {
	s := NewServiceStrategy(nil)
	if _, err := s.Run(context.Background(), "print(1)"); err == nil {
		t.Fatal("nil client should make the strategy unavailable")
	}
}

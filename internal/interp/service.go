package interp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/michaelbrown/crucible/internal/llm"
)

const servicePrompt = `You are a Python code interpreter. Each user message is a block of
Python code. Execute it and reply with a JSON object of the shape
{"stdout": [...lines...], "stderr": [...lines...], "results": [{"text": "..."}]}
containing the console output. Reply with JSON only.`

// ServiceStrategy delegates execution to a richer interpreter service over
// an OpenAI-compatible chat API. The conversation is multi-turn: state built
// up by earlier executions (variables, imports) can persist on the service
// side until the conversation is reset.
type ServiceStrategy struct {
	client  llm.Client
	history []llm.Message
}

// NewServiceStrategy creates the primary strategy. A nil client means the
// service is not configured; Run then fails and the engine falls through to
// the subprocess strategy.
func NewServiceStrategy(client llm.Client) *ServiceStrategy {
	return &ServiceStrategy{client: client}
}

func (s *ServiceStrategy) Name() string { return "service" }

func (s *ServiceStrategy) Run(ctx context.Context, code string) (*Output, error) {
	if s.client == nil {
		return nil, errors.New("interpreter service not configured")
	}

	if len(s.history) == 0 {
		s.history = []llm.Message{llm.SystemMessage(servicePrompt)}
	}
	s.history = append(s.history, llm.UserMessage(code))

	resp, err := s.client.ChatCompletion(ctx, s.history)
	if err != nil {
		// Drop the unanswered turn so a later retry starts clean.
		s.history = s.history[:len(s.history)-1]
		return nil, err
	}
	s.history = append(s.history, resp.Message)

	return parseServiceOutput(resp.Message.Content), nil
}

// ResetConversation clears the multi-turn state held with the service.
func (s *ServiceStrategy) ResetConversation() {
	s.history = nil
}

// serviceEnvelope is the structured reply the service is asked to produce.
type serviceEnvelope struct {
	Stdout  []string     `json:"stdout"`
	Stderr  []string     `json:"stderr"`
	Results []TextResult `json:"results"`
	Error   *ExecError   `json:"error"`
}

// parseServiceOutput unpacks the service reply. Replies that are not the
// JSON envelope (the service answered in prose) are carried whole as a
// single text result rather than rejected.
func parseServiceOutput(text string) *Output {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var env serviceEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil {
			return &Output{
				Stdout:  env.Stdout,
				Stderr:  env.Stderr,
				Results: env.Results,
				Err:     env.Error,
			}
		}
	}
	if trimmed == "" {
		return &Output{}
	}
	return &Output{Results: []TextResult{{Text: trimmed}}}
}

package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TextGenerator is the external text-generation collaborator. One
// implementation wraps the Gemini API; tests use stubs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

var (
	ErrChatGeneration = errors.New("assist: text generation failed")
	ErrChatNoProposal = errors.New("assist: no usable template proposal")
)

// ChatAnswer is the chat endpoint's payload: the answer prose, plus the
// template call it was grounded on so clients can show their work.
type ChatAnswer struct {
	Answer   string       `json:"answer"`
	Template TemplateName `json:"template"`
	Params   Params       `json:"params"`
	Data     any          `json:"data,omitempty"`
	// Refusal carries the executor's structured error when the proposed
	// call was rejected; Answer then explains the rejection.
	Refusal *ExecError `json:"refusal,omitempty"`
}

// ChatService turns a natural-language question into one templated read and
// a prose summary. Two sequential generation calls: the first proposes a
// {template, params} pair, the second summarizes the rows. The proposal is
// never trusted: Execute re-validates scope and parameters independently.
type ChatService struct {
	exec *Executor
	gen  TextGenerator
}

func NewChatService(exec *Executor, gen TextGenerator) *ChatService {
	return &ChatService{exec: exec, gen: gen}
}

type chatProposal struct {
	Template string `json:"template"`
	Params   Params `json:"params"`
}

func (s *ChatService) Answer(ctx context.Context, qc QueryContext, question string) (ChatAnswer, error) {
	raw, err := s.gen.GenerateText(ctx, s.plannerPrompt(qc, question))
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("%w: %v", ErrChatGeneration, err)
	}
	proposal, err := parseChatProposal(raw)
	if err != nil {
		return ChatAnswer{}, err
	}

	name := TemplateName(proposal.Template)
	result := s.exec.Execute(ctx, qc, name, proposal.Params)
	if result.Err != nil {
		return ChatAnswer{
			Answer:   "I can't run that query: " + result.Err.Message,
			Template: name,
			Params:   proposal.Params,
			Refusal:  result.Err,
		}, nil
	}

	summary, err := s.gen.GenerateText(ctx, summaryPrompt(question, name, result.Data))
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("%w: %v", ErrChatGeneration, err)
	}
	return ChatAnswer{
		Answer:   strings.TrimSpace(summary),
		Template: name,
		Params:   proposal.Params,
		Data:     result.Data,
	}, nil
}

func (s *ChatService) plannerPrompt(qc QueryContext, question string) string {
	var b strings.Builder
	b.WriteString("You translate a question about organizational spending and item prices into exactly one query template call.\n")
	b.WriteString("Available templates:\n")
	for _, def := range s.exec.Definitions(qc) {
		b.WriteString("- ")
		b.WriteString(string(def.Name))
		b.WriteString(": ")
		b.WriteString(def.Summary)
		b.WriteString(" (required: ")
		b.WriteString(joinFields(def.Required))
		if len(def.Optional) > 0 {
			b.WriteString("; optional: ")
			b.WriteString(joinFields(def.Optional))
		}
		b.WriteString(")\n")
	}
	b.WriteString("Dates are YYYY-MM-DD. Omit org_id unless the question names a specific organization.\n")
	b.WriteString(`Reply with JSON only: {"template": "...", "params": {...}}` + "\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func summaryPrompt(question string, name TemplateName, data any) string {
	rows, err := json.Marshal(data)
	if err != nil {
		rows = []byte("[]")
	}
	return "Answer the question in two or three plain sentences using only this query result.\n" +
		"Question: " + question + "\n" +
		"Template: " + string(name) + "\n" +
		"Result: " + string(rows)
}

// parseChatProposal decodes the planner's reply, tolerating markdown code
// fences around the JSON.
func parseChatProposal(raw string) (chatProposal, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var proposal chatProposal
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&proposal); err != nil {
		return chatProposal{}, ErrChatNoProposal
	}
	if strings.TrimSpace(proposal.Template) == "" {
		return chatProposal{}, ErrChatNoProposal
	}
	return proposal, nil
}

func joinFields(fields []ParamField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, string(f))
	}
	return strings.Join(parts, ", ")
}

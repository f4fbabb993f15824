// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ErrUnavailable is the default error of a Model with Fail set.
var ErrUnavailable = errors.New("llmtest: model unavailable")

// Call records one prompt sent to the Model.
type Call struct {
	Prompt string
	Model  string
}

// Model answers prompts by rule. Rules are checked in order; the first whose
// Contains is a substring of the prompt wins. Without a match, Default is
// returned. Fail makes every call return an error.
type Model struct {
	mu      sync.Mutex
	rules   []rule
	Default string
	Fail    bool
	calls   []Call
}

type rule struct {
	contains string
	reply    string
	err      error
	panicMsg string
}

// New returns a Model replying def when no rule matches.
func New(def string) *Model {
	return &Model{Default: def}
}

// On replies reply to prompts containing substr.
func (m *Model) On(substr, reply string) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, reply: reply})
	return m
}

// OnError fails prompts containing substr with err.
func (m *Model) OnError(substr string, err error) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, err: err})
	return m
}

// OnPanic panics on prompts containing substr.
func (m *Model) OnPanic(substr, msg string) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, panicMsg: msg})
	return m
}

// Calls returns a copy of the recorded calls.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns the number of calls whose prompt contains substr.
func (m *Model) CallCount(substr string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}

// GenerateContent implements llms.Model.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	var parts []string
	for _, msg := range messages {
		for _, p := range msg.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
	}
	prompt := strings.Join(parts, "\n")

	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, Model: opts.Model})
	fail := m.Fail
	matched := rule{reply: m.Default}
	for _, r := range m.rules {
		if strings.Contains(prompt, r.contains) {
			matched = r
			break
		}
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, ErrUnavailable
	}
	if matched.panicMsg != "" {
		panic(matched.panicMsg)
	}
	if matched.err != nil {
		return nil, matched.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: matched.reply}}}, nil
}

// Call implements llms.Model.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

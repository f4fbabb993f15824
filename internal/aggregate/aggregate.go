// Package aggregate merges partial answers into the final answer.
package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/router"
	"go.uber.org/zap"
)

const (
	// FailureAnswer is returned when the aggregation call fails.
	FailureAnswer = "Error: Could not aggregate responses."
	// NoContextAnswer is returned when no partial answer is usable.
	NoContextAnswer = "I don't know."
)

// SystemPrompt is the instruction sent with every aggregation call.
const SystemPrompt = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know.
Use three sentences maximum and keep the answer concise.`

// Aggregator makes the final generation call.
type Aggregator struct {
	gen    llm.Generator
	model  string
	logger *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithModel sets the model identifier.
func WithModel(m string) Option {
	return func(a *Aggregator) { a.model = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New returns an Aggregator.
func New(gen llm.Generator, opts ...Option) *Aggregator {
	a := &Aggregator{gen: gen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prompt renders the user prompt from question and the answered partials, in order.
// It returns false when no partial is usable.
func Prompt(question string, partials []router.Partial) (string, bool) {
	texts := make([]string, 0, len(partials))
	for _, p := range partials {
		if p.Answered && strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return fmt.Sprintf("Question: %s\nContext: %s\nAnswer:", question, strings.Join(texts, "\n")), true
}

// Aggregate returns the final answer. It never returns an empty string.
func (a *Aggregator) Aggregate(ctx context.Context, question string, partials []router.Partial) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregation panicked", zap.Any("panic", r))
			answer = FailureAnswer
		}
	}()

	user, ok := Prompt(question, partials)
	if !ok {
		a.logger.Debug("no usable partial answers", zap.Int("partials", len(partials)))
		return NoContextAnswer
	}
	c := a.gen.Generate(ctx, a.model, user, SystemPrompt)
	if c.Failed() {
		a.logger.Warn("aggregation call failed", zap.Error(c.Err))
		return FailureAnswer
	}
	return c.Text
}

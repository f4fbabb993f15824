// Package decompose turns a question into a validated retrieval plan with one
// oracle call.
package decompose

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/plan"
	"go.uber.org/zap"
)

// SystemPrompt constrains the oracle to the closed vocabulary and pure JSON output.
const SystemPrompt = `You are an AI assistant that specializes in breaking down complex questions into simpler, manageable sub-questions.
You have at your disposal a pre-defined set of functions and files to utilize in answering each sub-question.
Please remember that your output should only contain the provided function names and file names, and that each sub-question should be a full question that can be answered using a single function and a single file.
Return only a pure JSON object without any additional formatting, markdown, or code block markers. Do not include triple backticks, language hints, or any extra text.`

// Example is a few-shot question with its expected plan.
type Example struct {
	Question string
	Plan     plan.Plan
}

// Decomposer builds decomposition prompts and validates the oracle's reply.
type Decomposer struct {
	gen         llm.Generator
	vocab       *plan.Vocabulary
	taskContext string
	model       string
	policy      plan.Policy
	examples    []Example
	logger      *zap.Logger
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithTaskContext sets the corpus description placed before the question.
func WithTaskContext(s string) Option {
	return func(d *Decomposer) { d.taskContext = s }
}

// WithModel sets the model identifier passed to the gateway.
func WithModel(m string) Option {
	return func(d *Decomposer) { d.model = m }
}

// WithPolicy sets the unit validation policy.
func WithPolicy(p plan.Policy) Option {
	return func(d *Decomposer) { d.policy = p }
}

// WithExamples replaces the few-shot examples.
func WithExamples(ex []Example) Option {
	return func(d *Decomposer) { d.examples = ex }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decomposer) { d.logger = l }
}

// New returns a Decomposer over vocab.
func New(gen llm.Generator, vocab *plan.Vocabulary, opts ...Option) *Decomposer {
	d := &Decomposer{
		gen:    gen,
		vocab:  vocab,
		policy: plan.DropInvalid,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.examples == nil {
		d.examples = DefaultExamples(vocab)
	}
	return d
}

// DefaultExamples returns one comparison decomposed into per-document vector
// units and one summarization decomposed into per-document summary units,
// drawn from vocab. With the city corpus they compare Atlanta and Toronto and
// summarize Chicago and Houston.
func DefaultExamples(vocab *plan.Vocabulary) []Example {
	names := vocab.Names()
	n := len(names)
	at := func(i int) plan.DocumentID { return plan.DocumentID(names[((i%n)+n)%n]) }
	a, b := at(n-1), at(0)
	c, d := at(1), at(2)
	return []Example{
		{
			Question: fmt.Sprintf("Compare the population of %s and %s?", a, b),
			Plan: plan.Plan{
				{Question: fmt.Sprintf("What is the population of %s?", a), Strategy: plan.VectorRetrieval, Target: a},
				{Question: fmt.Sprintf("What is the population of %s?", b), Strategy: plan.VectorRetrieval, Target: b},
			},
		},
		{
			Question: fmt.Sprintf("Summarize the history of %s and %s.", c, d),
			Plan: plan.Plan{
				{Question: fmt.Sprintf("What is the history of %s?", c), Strategy: plan.SummaryRetrieval, Target: c},
				{Question: fmt.Sprintf("What is the history of %s?", d), Strategy: plan.SummaryRetrieval, Target: d},
			},
		},
	}
}

// UserPrompt renders the decomposition prompt for question.
func (d *Decomposer) UserPrompt(question string) (string, error) {
	var b strings.Builder
	if d.taskContext != "" {
		b.WriteString(d.taskContext)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Here is the user question: %s\n", question)
	b.WriteString("\nFew-shot examples:\n")
	for _, ex := range d.examples {
		encoded, err := plan.Encode(ex.Plan)
		if err != nil {
			return "", fmt.Errorf("encode example %q: %w", ex.Question, err)
		}
		fmt.Fprintf(&b, "Question: %s\nOutput: %s\n", ex.Question, encoded)
	}
	tags := make([]string, len(plan.Strategies))
	for i, s := range plan.Strategies {
		tags[i] = quote(s.String())
	}
	names := d.vocab.Names()
	for i, n := range names {
		names[i] = quote(n)
	}
	fmt.Fprintf(&b, "\nPlease output your answer as valid JSON with a single %q list. ", plan.ListField)
	fmt.Fprintf(&b, "Ensure that the 'file_name' field is one of the following exactly: %s. ", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Ensure that the 'function' field is one of the following exactly: %s.", strings.Join(tags, ", "))
	return b.String(), nil
}

func quote(s string) string {
	return "'" + s + "'"
}

// Decompose returns the validated plan for question. It never fails: gateway
// failures, malformed output and rendering panics all yield an empty plan.
func (d *Decomposer) Decompose(ctx context.Context, question string) (p plan.Plan) {
	log := d.logger.With(zap.String("component", "decompose"))
	defer func() {
		if r := recover(); r != nil {
			log.Error("decomposition panicked", zap.Any("panic", r))
			metrics.ObservePlan("panic", 0)
			p = plan.Plan{}
		}
	}()

	user, err := d.UserPrompt(question)
	if err != nil {
		log.Warn("failed to render decomposition prompt", zap.Error(err))
		metrics.ObservePlan("prompt_error", 0)
		return plan.Plan{}
	}
	c := d.gen.Generate(ctx, d.model, user, SystemPrompt)
	if c.Failed() {
		log.Warn("decomposition call failed", zap.Error(c.Err))
		metrics.ObservePlan("gateway_failed", 0)
		return plan.Plan{}
	}

	parsed, rejected, err := plan.Parse(c.Text, d.vocab, d.policy)
	for _, r := range rejected {
		metrics.IncDroppedUnit(r.Reason)
		log.Debug("plan unit rejected", zap.Int("index", r.Index), zap.String("reason", r.Reason), zap.Error(r.Err))
	}
	if err != nil {
		log.Warn("decomposition output rejected",
			zap.Error(err),
			zap.String("policy", string(d.policy)),
			zap.Int("response_chars", len(c.Text)),
		)
		metrics.ObservePlan("rejected", 0)
		return plan.Plan{}
	}
	metrics.ObservePlan("ok", len(parsed))
	log.Debug("question decomposed", zap.Int("units", len(parsed)), zap.Int("dropped", len(rejected)))
	return parsed
}

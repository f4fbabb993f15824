// Package router executes plan units against the corpus and the oracle.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/plan"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UnknownStrategyAnswer is the fixed answer for a unit with no known strategy.
const UnknownStrategyAnswer = "I don't know."

// DefaultTopK is the number of chunks used for vector retrieval.
const DefaultTopK = 3

// answerTemplate takes the question, then the context.
const answerTemplate = `You are an assistant for question-answering tasks.
Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know.
Use three sentences maximum and keep the answer concise.
Question: %s
Context: %s
Answer:`

// Corpus is the read-only view of the indexed documents.
type Corpus interface {
	// Search returns up to k chunk texts of docID, most similar first.
	Search(ctx context.Context, docID, query string, k int) ([]string, error)
	// FullText returns docID's text, already truncated for summary use.
	FullText(ctx context.Context, docID string) (string, error)
}

// Outcome labels how a unit was answered.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFallback Outcome = "fallback"
	OutcomeFailed   Outcome = "failed"
	OutcomeUnknown  Outcome = "unknown"
)

// Partial is the answer to one unit. When Answered is false the unit produced
// no answer and Text is empty; Err holds the cause.
type Partial struct {
	Unit     plan.Unit
	Text     string
	Answered bool
	Outcome  Outcome
	Err      error
}

var errNoChunks = errors.New("no matching chunks")

// Router dispatches units to vector or summary retrieval.
type Router struct {
	corpus         Corpus
	gen            llm.Generator
	model          string
	topK           int
	maxConcurrency int
	logger         *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithModel sets the model identifier passed to the gateway.
func WithModel(m string) Option {
	return func(r *Router) { r.model = m }
}

// WithTopK sets the number of chunks for vector retrieval.
func WithTopK(k int) Option {
	return func(r *Router) { r.topK = k }
}

// WithMaxConcurrency bounds parallel units in RetrieveAll; values below 1 run serially.
func WithMaxConcurrency(n int) Option {
	return func(r *Router) { r.maxConcurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New returns a Router.
func New(corpus Corpus, gen llm.Generator, opts ...Option) *Router {
	r := &Router{
		corpus:         corpus,
		gen:            gen,
		topK:           DefaultTopK,
		maxConcurrency: 1,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	return r
}

// RetrieveAll answers every unit and returns the partials in plan order.
// A failing unit never affects the others.
func (r *Router) RetrieveAll(ctx context.Context, p plan.Plan) []Partial {
	partials := make([]Partial, len(p))
	var g errgroup.Group
	g.SetLimit(max(r.maxConcurrency, 1))
	for i, u := range p {
		i, u := i, u
		g.Go(func() error {
			partials[i] = r.Retrieve(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return partials
}

// Retrieve answers one unit. It never panics.
func (r *Router) Retrieve(ctx context.Context, u plan.Unit) (p Partial) {
	log := r.logger.With(
		zap.String("strategy", u.Strategy.String()),
		zap.String("document", string(u.Target)),
	)
	defer func() {
		if rec := recover(); rec != nil {
			p = noAnswer(u, fmt.Errorf("retrieval panic: %v", rec))
		}
		metrics.IncRetrieval(u.Strategy.String(), string(p.Outcome))
		if !p.Answered {
			log.Warn("unit produced no answer", zap.String("question", u.Question), zap.Error(p.Err))
		}
	}()

	switch u.Strategy {
	case plan.VectorRetrieval:
		text, err := r.vector(ctx, u)
		if errors.Is(err, errNoChunks) {
			log.Debug("no chunks found, falling back to summary retrieval")
			p = r.summary(ctx, u)
			if p.Answered {
				p.Outcome = OutcomeFallback
			}
			return p
		}
		if err != nil {
			return noAnswer(u, err)
		}
		return Partial{Unit: u, Text: text, Answered: true, Outcome: OutcomeAnswered}
	case plan.SummaryRetrieval:
		return r.summary(ctx, u)
	default:
		return Partial{Unit: u, Text: UnknownStrategyAnswer, Answered: true, Outcome: OutcomeUnknown}
	}
}

func (r *Router) vector(ctx context.Context, u plan.Unit) (string, error) {
	chunks, err := r.corpus.Search(ctx, string(u.Target), u.Question, r.topK)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", u.Target, err)
	}
	if len(chunks) == 0 {
		return "", errNoChunks
	}
	return r.generate(ctx, u.Question, strings.Join(chunks, "\n"))
}

func (r *Router) summary(ctx context.Context, u plan.Unit) Partial {
	text, err := r.corpus.FullText(ctx, string(u.Target))
	if err != nil {
		return noAnswer(u, fmt.Errorf("full text %s: %w", u.Target, err))
	}
	answer, err := r.generate(ctx, u.Question, text)
	if err != nil {
		return noAnswer(u, err)
	}
	return Partial{Unit: u, Text: answer, Answered: true, Outcome: OutcomeAnswered}
}

func (r *Router) generate(ctx context.Context, question, passage string) (string, error) {
	c := r.gen.Generate(ctx, r.model, fmt.Sprintf(answerTemplate, question, passage), "")
	if c.Failed() {
		return "", c.Err
	}
	return c.Text, nil
}

func noAnswer(u plan.Unit, err error) Partial {
	return Partial{Unit: u, Outcome: OutcomeFailed, Err: err}
}

// Package pipeline answers a question: decompose, route, aggregate.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/aggregate"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/decompose"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/plan"
	"github.com/hyperjump/kotae/internal/router"
	"go.uber.org/zap"
)

// ErrEmptyQuestion is the only error Answer returns.
var ErrEmptyQuestion = models.ErrNoQuestion

// Answer is the result of one question.
type Answer struct {
	RequestID string
	Question  string
	Text      string
	Plan      plan.Plan
	Partials  []router.Partial
	Elapsed   time.Duration
}

// Pipeline composes the decomposer, router and aggregator.
type Pipeline struct {
	decomposer *decompose.Decomposer
	router     *router.Router
	aggregator *aggregate.Aggregator
	vocab      *plan.Vocabulary
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New composes a pipeline from its parts.
func New(d *decompose.Decomposer, r *router.Router, a *aggregate.Aggregator, vocab *plan.Vocabulary, opts ...Option) *Pipeline {
	p := &Pipeline{decomposer: d, router: r, aggregator: a, vocab: vocab, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig builds the vocabulary and every stage from cfg.
func FromConfig(cfg *config.Config, gen llm.Generator, corpus router.Corpus, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vocab, err := plan.NewVocabulary(cfg.Corpus.Documents)
	if err != nil {
		return nil, fmt.Errorf("invalid corpus documents: %w", err)
	}
	policy, err := plan.ParsePolicy(cfg.Pipeline.PlanPolicy)
	if err != nil {
		return nil, err
	}
	model := cfg.LLM.Model
	d := decompose.New(gen, vocab,
		decompose.WithModel(model),
		decompose.WithTaskContext(cfg.Corpus.TaskContext),
		decompose.WithPolicy(policy),
		decompose.WithLogger(logger),
	)
	r := router.New(corpus, gen,
		router.WithModel(model),
		router.WithTopK(cfg.Pipeline.TopK),
		router.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		router.WithLogger(logger),
	)
	a := aggregate.New(gen, aggregate.WithModel(model), aggregate.WithLogger(logger))
	return New(d, r, a, vocab, WithLogger(logger)), nil
}

// Vocabulary returns the document vocabulary.
func (p *Pipeline) Vocabulary() *plan.Vocabulary {
	return p.vocab
}

// Plan decomposes question without answering it.
func (p *Pipeline) Plan(ctx context.Context, question string) (plan.Plan, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	return p.decomposer.Decompose(ctx, question), nil
}

// Answer runs the full pipeline. The only error is ErrEmptyQuestion; every
// other failure degrades to a sentinel answer text.
func (p *Pipeline) Answer(ctx context.Context, question string) (ans *Answer, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()
	ans = &Answer{RequestID: uuid.New().String(), Question: question}
	log := p.logger.With(zap.String("request_id", ans.RequestID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("answer pipeline panicked", zap.Any("panic", r))
			ans.Text = aggregate.FailureAnswer
			err = nil
		}
		ans.Elapsed = time.Since(start)
		metrics.ObserveAnswer(start)
	}()

	log.Info("answering question", zap.String("question", question))
	ans.Plan = p.decomposer.Decompose(ctx, question)
	if len(ans.Plan) == 0 {
		log.Warn("empty plan, answering without context")
	}
	ans.Partials = p.router.RetrieveAll(ctx, ans.Plan)
	ans.Text = p.aggregator.Aggregate(ctx, question, ans.Partials)

	answered := 0
	for _, part := range ans.Partials {
		if part.Answered {
			answered++
		}
	}
	log.Info("question answered",
		zap.Int("units", len(ans.Plan)),
		zap.Int("answered", answered),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ans, nil
}

// PlanUnits converts a plan to its wire view.
func PlanUnits(p plan.Plan) []models.PlanUnit {
	units := make([]models.PlanUnit, len(p))
	for i, u := range p {
		units[i] = models.PlanUnit{Question: u.Question, Strategy: u.Strategy.String(), Target: string(u.Target)}
	}
	return units
}

// Response converts a to its wire view.
func (a *Answer) Response() *models.AskResponse {
	partials := make([]models.PartialAnswer, len(a.Partials))
	for i, part := range a.Partials {
		partials[i] = models.PartialAnswer{
			Question: part.Unit.Question,
			Target:   string(part.Unit.Target),
			Strategy: part.Unit.Strategy.String(),
			Answer:   part.Text,
			Answered: part.Answered,
			Fallback: part.Outcome == router.OutcomeFallback,
		}
	}
	return &models.AskResponse{
		Answer:    a.Text,
		RequestID: a.RequestID,
		Plan:      PlanUnits(a.Plan),
		Partials:  partials,
		QueryTime: a.Elapsed.Milliseconds(),
	}
}

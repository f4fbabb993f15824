// Package llm wraps the text-generation oracle behind a single-call gateway
// that never returns an error.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// FailureSentinel is the text of every failed Completion.
const FailureSentinel = "Error: Could not generate response."

// ErrEmptyResponse is recorded when the oracle returns no usable text.
var ErrEmptyResponse = errors.New("empty response from model")

// Completion is the result of one gateway call: generated text, or the
// failure sentinel with the cause kept in Err.
type Completion struct {
	Text string
	Err  error
}

// Failed reports whether the call produced the failure sentinel.
func (c Completion) Failed() bool {
	return c.Err != nil
}

func failed(err error) Completion {
	return Completion{Text: FailureSentinel, Err: err}
}

// Generator is implemented by Gateway; core components depend on it.
type Generator interface {
	Generate(ctx context.Context, model, user, system string) Completion
}

// Gateway makes exactly one oracle call per Generate. It is safe for concurrent use.
type Gateway struct {
	model        llms.Model
	defaultModel string
	timeout      time.Duration
	logger       *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithTimeout bounds each call. Zero means no gateway-level timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithDefaultModel sets the model used when Generate is called with an empty model.
func WithDefaultModel(name string) GatewayOption {
	return func(g *Gateway) { g.defaultModel = name }
}

// NewGateway wraps model.
func NewGateway(model llms.Model, opts ...GatewayOption) *Gateway {
	g := &Gateway{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultModel returns the model identifier used for an empty model argument.
func (g *Gateway) DefaultModel() string {
	return g.defaultModel
}

// Generate sends system + "\n" + user (or user alone when system is empty) to
// the oracle. Failures of any kind, including panics inside the provider, yield
// the sentinel Completion.
func (g *Gateway) Generate(ctx context.Context, model, user, system string) (c Completion) {
	start := time.Now()
	if model == "" {
		model = g.defaultModel
	}
	defer func() {
		if r := recover(); r != nil {
			c = failed(fmt.Errorf("model panic: %v", r))
		}
		metrics.ObserveGateway(start, c.Failed())
		if c.Failed() {
			g.logger.Warn("generation failed",
				zap.String("model", model),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(c.Err),
			)
		}
	}()

	if g.model == nil {
		return failed(errors.New("no model configured"))
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	prompt := user
	if system != "" {
		prompt = system + "\n" + user
	}
	var opts []llms.CallOption
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	resp, err := g.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return failed(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return failed(ErrEmptyResponse)
	}
	text := resp.Choices[0].Content
	if strings.TrimSpace(text) == "" {
		return failed(ErrEmptyResponse)
	}
	g.logger.Debug("generation complete",
		zap.String("model", model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Completion{Text: text}
}

package llm

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// placeholderToken satisfies the openai client for endpoints without auth.
const placeholderToken = "unused"

// NewModel builds the oracle client named by cfg.Provider. "openai" speaks to
// any OpenAI-compatible endpoint (including Gemini's); "ollama" to a local server.
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai", "":
		token := cfg.APIKey
		if token == "" {
			token = placeholderToken
		}
		opts := []openai.Option{openai.WithToken(token), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return m, nil
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}

// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan validation policies.
const (
	PlanPolicyDropInvalid = "drop_invalid"
	PlanPolicyStrict      = "strict"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	RequestTimeout int    `yaml:"request_timeout_seconds"`
}

// StorageConfig holds paths for database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexType string `yaml:"vector_index_type"`
}

// EmbeddingConfig selects the embedder. Provider "hash" needs no network;
// "openai" talks to any OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds the generation oracle settings.
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CorpusConfig describes the fixed document set.
type CorpusConfig struct {
	Directory       string   `yaml:"directory"`
	Documents       []string `yaml:"documents"`
	Extensions      []string `yaml:"extensions"`
	TaskContext     string   `yaml:"task_context"`
	MaxSummaryChars int      `yaml:"max_summary_chars"`
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	WikiEndpoint    string   `yaml:"wiki_endpoint"`
	Watch           bool     `yaml:"watch"`
}

// PipelineConfig tunes decomposition and retrieval.
type PipelineConfig struct {
	TopK           int     `yaml:"top_k"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	PlanPolicy     string  `yaml:"plan_policy"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Corpus.Directory = expandPath(cfg.Corpus.Directory, configDir)

	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("KOTAE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("KOTAE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}
}

// Validate reports configuration that cannot produce a working pipeline.
func Validate(cfg *Config) error {
	var errs []error
	if len(cfg.Corpus.Documents) == 0 {
		errs = append(errs, errors.New("corpus.documents must list at least one document"))
	}
	seen := make(map[string]bool, len(cfg.Corpus.Documents))
	for _, d := range cfg.Corpus.Documents {
		name := strings.TrimSpace(d)
		if name == "" {
			errs = append(errs, errors.New("corpus.documents contains a blank name"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("corpus.documents contains %q twice", name))
		}
		seen[name] = true
	}
	switch cfg.Pipeline.PlanPolicy {
	case PlanPolicyDropInvalid, PlanPolicyStrict:
	default:
		errs = append(errs, fmt.Errorf("unknown pipeline.plan_policy %q", cfg.Pipeline.PlanPolicy))
	}
	switch cfg.LLM.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", cfg.LLM.Provider))
	}
	switch cfg.Embedding.Provider {
	case "hash", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", cfg.Embedding.Provider))
	}
	if cfg.Pipeline.TopK <= 0 {
		errs = append(errs, errors.New("pipeline.top_k must be positive"))
	}
	kw, sem := cfg.Pipeline.KeywordWeight, cfg.Pipeline.SemanticWeight
	if kw < 0 || sem < 0 {
		errs = append(errs, errors.New("pipeline.keyword_weight and pipeline.semantic_weight must not be negative"))
	} else if kw == 0 && sem == 0 {
		errs = append(errs, errors.New("pipeline.keyword_weight and pipeline.semantic_weight cannot both be zero"))
	}
	return errors.Join(errs...)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
corpus:
  documents: ["Paris", "Lyon"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if len(cfg.Corpus.Documents) != 2 || cfg.Corpus.Documents[0] != "Paris" {
		t.Errorf("documents: got %v", cfg.Corpus.Documents)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/corpus.db"
corpus:
  directory: "./data/corpus"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "corpus.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantCorpus := filepath.Join(dir, "data", "corpus")
	if cfg.Corpus.Directory != wantCorpus {
		t.Errorf("corpus directory = %s, want %s", cfg.Corpus.Directory, wantCorpus)
	}
}

func TestLoad_envOverridesAPIKey(t *testing.T) {
	t.Setenv("KOTAE_LLM_API_KEY", "from-env")
	t.Setenv("KOTAE_LLM_BASE_URL", "http://127.0.0.1:9999/v1")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  api_key: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://127.0.0.1:9999/v1" {
		t.Errorf("base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.Embedding.APIKey != "from-env" {
		t.Errorf("embedding api key should inherit llm key, got %q", cfg.Embedding.APIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.TopK != 3 {
		t.Errorf("default top_k: got %d", cfg.Pipeline.TopK)
	}
	if cfg.Corpus.MaxSummaryChars != 10000 {
		t.Errorf("default max_summary_chars: got %d", cfg.Corpus.MaxSummaryChars)
	}
	if cfg.Pipeline.PlanPolicy != PlanPolicyDropInvalid {
		t.Errorf("default plan policy: got %s", cfg.Pipeline.PlanPolicy)
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("default model: got %s", cfg.LLM.Model)
	}
	if len(cfg.Corpus.Documents) != 5 || cfg.Corpus.Documents[0] != "Toronto" {
		t.Errorf("default documents: got %v", cfg.Corpus.Documents)
	}
	if cfg.Corpus.TaskContext != DefaultTaskContext {
		t.Errorf("default task context: got %q", cfg.Corpus.TaskContext)
	}
	if cfg.Pipeline.KeywordWeight+cfg.Pipeline.SemanticWeight != 1.0 {
		t.Errorf("default weights should sum to 1, got %f + %f", cfg.Pipeline.KeywordWeight, cfg.Pipeline.SemanticWeight)
	}
}

func TestApplyDefaults_documentsNotShared(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Corpus.Documents[0] = "Changed"
	if DefaultDocuments[0] != "Toronto" {
		t.Error("ApplyDefaults must copy DefaultDocuments")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"duplicate document", func(c *Config) { c.Corpus.Documents = []string{"A", "A"} }, "twice"},
		{"blank document", func(c *Config) { c.Corpus.Documents = []string{"A", " "} }, "blank"},
		{"unknown policy", func(c *Config) { c.Pipeline.PlanPolicy = "lenient" }, "plan_policy"},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "carrier-pigeon" }, "llm.provider"},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "onnx" }, "embedding.provider"},
		{"negative top k", func(c *Config) { c.Pipeline.TopK = -1 }, "top_k"},
		{"negative keyword weight", func(c *Config) { c.Pipeline.KeywordWeight = -0.3 }, "must not be negative"},
		{"negative semantic weight", func(c *Config) { c.Pipeline.SemanticWeight = -1 }, "must not be negative"},
		{"zero weights", func(c *Config) {
			c.Pipeline.KeywordWeight = 0
			c.Pipeline.SemanticWeight = 0
		}, "both be zero"},
		{"keyword only", func(c *Config) {
			c.Pipeline.KeywordWeight = 1
			c.Pipeline.SemanticWeight = 0
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}

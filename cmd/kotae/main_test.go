package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"when was boston founded", "-format", "json"},
			expected: []string{"-format", "json", "when was boston founded"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-format", "json", "when was boston founded"},
			expected: []string{"-format", "json", "when was boston founded"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"when was boston founded"},
			expected: []string{"when was boston founded"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"compare", "toronto", "-verbose"},
			expected: []string{"-verbose", "compare", "toronto"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"Toronto?"}, "Toronto?"},
		{"multiple words", []string{"how", "big", "is", "Toronto?"}, "how big is Toronto?"},
		{"single quoted phrase", []string{"how big is Toronto?"}, "how big is Toronto?"},
		{"surrounding whitespace", []string{" ", "Boston", " "}, "Boston"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
corpus:
  documents: ["Paris", "Lyon"]
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || len(cfg.Corpus.Documents) != 2 {
		t.Errorf("cwd config.yaml not applied: %+v", cfg.Corpus.Documents)
	}
}

func TestLoadConfig_missingDefaultUsesBuiltins(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config is installed")
	}
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty", resolved)
	}
	if len(cfg.Corpus.Documents) != len(config.DefaultDocuments) || cfg.Pipeline.TopK != 3 {
		t.Errorf("defaults not applied: %+v", cfg.Pipeline)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_explicitPathMissing(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestInitializeComponents_ingestAndStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db", "corpus.db"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Embedding: config.EmbeddingConfig{Dimensions: 32},
		Corpus:    config.CorpusConfig{Directory: filepath.Join(dir, "data")},
	}
	config.ApplyDefaults(cfg)
	if err := os.MkdirAll(cfg.Corpus.Directory, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Corpus.Directory, "Chicago.txt"), []byte("Chicago was incorporated as a city in 1837."), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	report, err := c.Indexer.IndexCorpus(ctx, cfg.Corpus.Directory, cfg.Corpus.Documents, cfg.Corpus.Extensions)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(report.Indexed, []string{"Chicago"}) {
		t.Errorf("indexed: %v", report.Indexed)
	}
	c.Close()

	c, err = initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	status, err := localStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	if status.Documents != 1 || status.Chunks != 1 {
		t.Errorf("counts: %+v", status)
	}
	if status.VectorIndexSize != 1 {
		t.Errorf("vector index should be rebuilt from storage, size %d", status.VectorIndexSize)
	}
	if status.Config.LLMModel != "gemini-1.5-flash" || len(status.Corpus) != 5 {
		t.Errorf("status config: %+v, corpus %v", status.Config, status.Corpus)
	}
	if status.DiskUsageBytes == nil || *status.DiskUsageBytes <= 0 {
		t.Error("disk usage should be reported")
	}
}

func TestInitializeComponents_unknownVectorTypeFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:    filepath.Join(dir, "corpus.db"),
			BleveIndexPath:  filepath.Join(dir, "bleve"),
			VectorIndexType: "faiss",
		},
	}
	config.ApplyDefaults(cfg)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if got := c.Engine.VectorIndexType(); got != "memory" {
		t.Errorf("vector index type = %s, want memory", got)
	}
}

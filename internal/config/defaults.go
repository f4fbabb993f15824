package config

// DefaultTaskContext describes the bundled corpus to the decomposition prompt.
const DefaultTaskContext = "We have a database of Wikipedia articles about cities."

// DefaultDocuments is the bundled city corpus.
var DefaultDocuments = []string{"Toronto", "Chicago", "Houston", "Boston", "Atlanta"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/corpus.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kotae/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexType == "" {
		cfg.Storage.VectorIndexType = "memory"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.Corpus.Directory == "" {
		cfg.Corpus.Directory = "./data"
	}
	if len(cfg.Corpus.Documents) == 0 {
		cfg.Corpus.Documents = append([]string(nil), DefaultDocuments...)
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".txt", ".md", ".pdf", ".docx"}
	}
	if cfg.Corpus.TaskContext == "" {
		cfg.Corpus.TaskContext = DefaultTaskContext
	}
	if cfg.Corpus.MaxSummaryChars == 0 {
		cfg.Corpus.MaxSummaryChars = 10000
	}
	if cfg.Corpus.ChunkSize == 0 {
		cfg.Corpus.ChunkSize = 200
	}
	if cfg.Corpus.ChunkOverlap == 0 {
		cfg.Corpus.ChunkOverlap = 20
	}
	if cfg.Corpus.WikiEndpoint == "" {
		cfg.Corpus.WikiEndpoint = "https://en.wikipedia.org/w/api.php"
	}
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 3
	}
	if cfg.Pipeline.MaxConcurrency == 0 {
		cfg.Pipeline.MaxConcurrency = 4
	}
	if cfg.Pipeline.PlanPolicy == "" {
		cfg.Pipeline.PlanPolicy = PlanPolicyDropInvalid
	}
	if cfg.Pipeline.KeywordWeight == 0 && cfg.Pipeline.SemanticWeight == 0 {
		cfg.Pipeline.KeywordWeight = 0.3
		cfg.Pipeline.SemanticWeight = 0.7
	}
}

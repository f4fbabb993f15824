package models

// StatusResponse is the shape of the status endpoint.
type StatusResponse struct {
	Documents       int64         `json:"documents"`
	Chunks          int64         `json:"chunks"`
	VectorIndexSize int           `json:"vector_index_size"`
	Corpus          []string      `json:"corpus"`
	DiskUsageBytes  *int64        `json:"disk_usage_bytes,omitempty"`
	Config          *StatusConfig `json:"config,omitempty"`
}

// StatusConfig is the configuration subset reported by status.
type StatusConfig struct {
	VectorIndexType     string `json:"vector_index_type"`
	EmbeddingProvider   string `json:"embedding_provider"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	LLMProvider         string `json:"llm_provider"`
	LLMModel            string `json:"llm_model"`
	TopK                int    `json:"top_k"`
	PlanPolicy          string `json:"plan_policy"`
	MaxSummaryChars     int    `json:"max_summary_chars"`
	ChunkSize           int    `json:"chunk_size,omitempty"`
	ChunkOverlap        int    `json:"chunk_overlap,omitempty"`
	DatabasePath        string `json:"database_path,omitempty"`
	BleveIndexPath      string `json:"bleve_index_path,omitempty"`
}

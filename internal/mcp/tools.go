package mcp

// AskInput defines the input schema for the ask tool.
type AskInput struct {
	Query          string `json:"query" jsonschema:"the onboarding question to answer"`
	UserID         int64  `json:"user_id,omitempty" jsonschema:"numeric id of the asking user, default 0"`
	UserName       string `json:"user_name,omitempty" jsonschema:"display name of the asking user"`
	UserRole       string `json:"user_role,omitempty" jsonschema:"job role of the asking user"`
	UserDepartment string `json:"user_department,omitempty" jsonschema:"department the asking user belongs to"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the retrieval query to execute"`
	Department string `json:"department,omitempty" jsonschema:"restrict results to one department: HR, IT, Security, Finance, General"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of retrieval results"`
}

// SearchResultOutput defines a single retrieval result with the scores
// behind the ranking so clients can judge answer quality.
type SearchResultOutput struct {
	Document     string   `json:"document" jsonschema:"policy file the chunk came from"`
	Section      string   `json:"section,omitempty" jsonschema:"markdown section heading of the chunk"`
	Department   string   `json:"department" jsonschema:"department the policy belongs to"`
	Content      string   `json:"content" jsonschema:"matched content snippet"`
	Score        float64  `json:"score" jsonschema:"fused relevance score between 0 and 1"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms that matched this result"`
	InBothLists  bool     `json:"in_both_lists,omitempty" jsonschema:"true if result appeared in both keyword and semantic retrieval"`
}

// IngestStatusInput defines the input schema for the ingest_status tool (no parameters).
type IngestStatusInput struct{}

// IngestStatusOutput defines the output schema for the ingest_status tool.
type IngestStatusOutput struct {
	Corpus     CorpusInfo    `json:"corpus"`
	Index      IndexStats    `json:"index"`
	Embeddings EmbeddingInfo `json:"embeddings"`
}

// CorpusInfo describes the on-disk policy corpus.
type CorpusInfo struct {
	Path        string         `json:"path"`
	FileCount   int            `json:"file_count"`
	Departments map[string]int `json:"departments,omitempty"`
}

// IndexStats contains statistics about the ingested index.
type IndexStats struct {
	ChunkCount       int            `json:"chunk_count"`
	BM25Documents    int            `json:"bm25_documents"`
	VectorCount      int            `json:"vector_count"`
	ChunksByDept     map[string]int `json:"chunks_by_department,omitempty"`
	CorpusVersion    string         `json:"corpus_version,omitempty"`
	LastIngestedAt   string         `json:"last_ingested_at,omitempty"`
	QueryCacheLength int            `json:"query_cache_entries"`
}

// EmbeddingInfo contains information about the embedding configuration.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	// Runtime state - clients use this to judge semantic retrieval quality
	ActualModel      string `json:"actual_model"`
	Dimensions       int    `json:"dimensions"`
	IsFallbackActive bool   `json:"is_fallback_active"`
	SemanticQuality  string `json:"semantic_quality"` // "high" (ollama) or "low" (static)
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput struct {
	TotalQueries        int64            `json:"total_queries"`
	CacheHits           int64            `json:"cache_hits"`
	CacheHitRate        float64          `json:"cache_hit_rate"`
	Escalations         int64            `json:"escalations"`
	ZeroResultCount     int64            `json:"zero_result_count"`
	ZeroResultPct       float64          `json:"zero_result_pct"`
	AverageLatencyMS    float64          `json:"average_latency_ms"`
	DepartmentCounts    map[string]int64 `json:"department_counts"`
	LanguageCounts      map[string]int64 `json:"language_counts"`
	TopTerms            []TermCountOut   `json:"top_terms"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
	Since               string           `json:"since"`
}

// TermCountOut represents a query term and its frequency.
type TermCountOut struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

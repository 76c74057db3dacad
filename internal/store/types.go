// Package store provides the persistence layer: a Bleve BM25 index, an
// HNSW vector store, and SQLite metadata for chunks, messages, and
// routing logs.
package store

import (
	"context"
	"fmt"
	"time"
)

// Department names used across indexes and routing.
const (
	DeptHR       = "HR"
	DeptIT       = "IT"
	DeptSecurity = "Security"
	DeptFinance  = "Finance"
	DeptGeneral  = "General"
)

// Departments lists all policy departments in canonical order.
var Departments = []string{DeptFinance, DeptGeneral, DeptHR, DeptIT, DeptSecurity}

// State keys for the metadata store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyCorpusVersion stores the ingest fingerprint of the policy corpus
	StateKeyCorpusVersion = "corpus_version"
	// StateKeyIngestedAt stores when the corpus was last ingested
	StateKeyIngestedAt = "ingested_at"
)

// Chunk is a retrievable slice of a policy document.
type Chunk struct {
	// ID is "<file_stem>_<ordinal>", e.g. "hr_policies_3".
	ID         string
	FilePath   string // Relative to the policies directory
	Department string // Derived from the file name prefix
	Section    string // Nearest preceding markdown heading
	Ordinal    int    // Zero-based position within the file
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Message is a persisted chat message.
type Message struct {
	ID        string // UUID
	UserID    int64
	Role      string // "user" or "assistant"
	Content   string // PII-redacted before persistence
	Agent     string // Department agent that produced an assistant message
	CreatedAt time.Time
}

// RoutingLog records one routing decision for offline analysis.
type RoutingLog struct {
	ID                   int64
	UserID               int64
	Query                string // PII-redacted before persistence
	PredictedDepartment  string
	PredictionConfidence float64
	FinalDepartment      string
	WasOverridden        bool
	OverrideReason       string
	Language             string
	TotalTimeMS          int64
	CreatedAt            time.Time
}

// MetadataStore persists chunks, messages, and routing logs in SQLite.
type MetadataStore interface {
	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	DeleteChunksByFile(ctx context.Context, filePath string) error
	DeleteAllChunks(ctx context.Context) error
	ListChunkIDs(ctx context.Context) ([]string, error)
	CountChunks(ctx context.Context) (int, error)
	CountChunksByDepartment(ctx context.Context) (map[string]int, error)

	// Message operations
	SaveMessage(ctx context.Context, msg *Message) error
	RecentMessages(ctx context.Context, userID int64, limit int) ([]*Message, error)

	// Routing log operations
	SaveRoutingLog(ctx context.Context, log *RoutingLog) error

	// State operations (key-value store for index metadata)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Document represents a document to be indexed in BM25.
type Document struct {
	ID         string // Chunk ID
	Content    string // Text content
	Department string // Department filter field
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
}

// BM25Index provides keyword search using the BM25 algorithm.
type BM25Index interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	// A non-empty department restricts results to that department.
	Search(ctx context.Context, query, department string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Close releases resources
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter
	K1 float64

	// B is the length normalization parameter
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.5,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English filler words. The list is
// deliberately short: policy queries are terse, and words like "leave"
// or "card" that look generic carry department signal.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "do", "for",
	"from", "in", "is", "it", "of", "on", "or", "the", "to", "with",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Similarity derived from distance (0-1]
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean)
	Metric string

	// M is HNSW max connections per layer
	M int

	// EfSearch is HNSW query-time search width
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides semantic search using the HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs and department labels.
	// If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32, departments []string) error

	// Search finds k nearest neighbors to the query vector. A non-empty
	// department restricts results to that department.
	Search(ctx context.Context, query []float32, k int, department string) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'onboardqa ingest --force')", e.Expected, e.Got)
}

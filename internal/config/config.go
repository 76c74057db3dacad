package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete onboardqa configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Router     RouterConfig     `yaml:"router" json:"router"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Agents     AgentsConfig     `yaml:"agents" json:"agents"`
	Escalation EscalationConfig `yaml:"escalation" json:"escalation"`
	Watcher    WatcherConfig    `yaml:"watcher" json:"watcher"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir holds indexes, the metadata database, and logs.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// PoliciesDir is the markdown policy corpus.
	PoliciesDir string `yaml:"policies_dir" json:"policies_dir"`
	// ClassifierPath is the serialized router model artifact.
	ClassifierPath string `yaml:"classifier_path" json:"classifier_path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // ollama, static, or empty for auto-detect
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"` // 0 = auto-detect
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheCapacity is the text->vector LRU size.
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity"`
	// TimeoutSeconds bounds a single embed batch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// LLMConfig configures the text generator collaborator.
type LLMConfig struct {
	Provider       string  `yaml:"provider" json:"provider"` // ollama or static
	Model          string  `yaml:"model" json:"model"`
	Host           string  `yaml:"host" json:"host"`
	Temperature    float64 `yaml:"temperature" json:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// SemanticWeight and BM25Weight must sum to 1.0.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	BM25Weight     float64 `yaml:"bm25_weight" json:"bm25_weight"`

	TopK         int `yaml:"top_k" json:"top_k"`
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// TTL cache for whole hybrid responses.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	CacheMaxSize    int `yaml:"cache_max_size" json:"cache_max_size"`

	// TimeoutSeconds bounds one retrieval round trip.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// RouterConfig configures department routing.
type RouterConfig struct {
	// ConfidenceThreshold is the classifier confidence below which
	// keyword matches override the prediction.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	// MultiIntentThreshold gates secondary department intents.
	MultiIntentThreshold float64 `yaml:"multi_intent_threshold" json:"multi_intent_threshold"`
}

// CacheConfig configures the two-tier response cache.
type CacheConfig struct {
	TTLHours            int     `yaml:"ttl_hours" json:"ttl_hours"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// SemanticScanLimit caps how many recent entries the semantic
	// tier compares against per lookup.
	SemanticScanLimit int `yaml:"semantic_scan_limit" json:"semantic_scan_limit"`
	// WriteQueueSize bounds the background writer queue; writes are
	// dropped (and counted) on overflow.
	WriteQueueSize int `yaml:"write_queue_size" json:"write_queue_size"`
}

// AgentsConfig configures the specialist handlers.
type AgentsConfig struct {
	// HistoryMax is the per-user conversation memory depth.
	HistoryMax int `yaml:"history_max" json:"history_max"`
	// ConfidenceHigh and ConfidenceMedium are level thresholds.
	ConfidenceHigh   float64 `yaml:"confidence_high" json:"confidence_high"`
	ConfidenceMedium float64 `yaml:"confidence_medium" json:"confidence_medium"`
}

// EscalationConfig configures the escalation engine.
type EscalationConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	// RepeatThreshold is the number of near-duplicate recent queries
	// that triggers an escalation.
	RepeatThreshold int `yaml:"repeat_threshold" json:"repeat_threshold"`
}

// WatcherConfig configures the policies-directory watcher.
type WatcherConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Debounce   string `yaml:"debounce" json:"debounce"`
	PollPeriod string `yaml:"poll_period" json:"poll_period"`
}

// ServerConfig configures the MCP serve surface.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:        defaultDataDir(),
			PoliciesDir:    "data/policies",
			ClassifierPath: "data/models/router.json",
		},
		Embeddings: EmbeddingsConfig{
			Provider:       "", // Empty triggers auto-detection: Ollama -> Static
			Model:          "nomic-embed-text",
			Dimensions:     0, // Auto-detect from embedder
			BatchSize:      32,
			OllamaHost:     "", // Empty uses default http://localhost:11434
			CacheCapacity:  10000,
			TimeoutSeconds: 1,
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "llama3.1:8b",
			Host:           "", // Empty uses default http://localhost:11434
			Temperature:    0.1,
			TimeoutSeconds: 30,
		},
		Search: SearchConfig{
			SemanticWeight:  0.7,
			BM25Weight:      0.3,
			TopK:            5,
			ChunkSize:       500,
			ChunkOverlap:    50,
			CacheTTLSeconds: 300,
			CacheMaxSize:    1000,
			TimeoutSeconds:  2,
		},
		Router: RouterConfig{
			ConfidenceThreshold:  0.6,
			MultiIntentThreshold: 0.3,
		},
		Cache: CacheConfig{
			TTLHours:            24,
			SimilarityThreshold: 0.92,
			SemanticScanLimit:   100,
			WriteQueueSize:      256,
		},
		Agents: AgentsConfig{
			HistoryMax:       10,
			ConfidenceHigh:   0.7,
			ConfidenceMedium: 0.4,
		},
		Escalation: EscalationConfig{
			ConfidenceThreshold: 0.5,
			RepeatThreshold:     2,
		},
		Watcher: WatcherConfig{
			Enabled:    false,
			Debounce:   "500ms",
			PollPeriod: "10s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// defaultDataDir returns the default data directory (~/.onboardqa).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".onboardqa")
	}
	return filepath.Join(home, ".onboardqa")
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.onboardqa.yaml in dir)
//  3. Environment variables (ONBOARDQA_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .onboardqa.yaml or .onboardqa.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".onboardqa.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".onboardqa.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.PoliciesDir != "" {
		c.Paths.PoliciesDir = other.Paths.PoliciesDir
	}
	if other.Paths.ClassifierPath != "" {
		c.Paths.ClassifierPath = other.Paths.ClassifierPath
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheCapacity != 0 {
		c.Embeddings.CacheCapacity = other.Embeddings.CacheCapacity
	}
	if other.Embeddings.TimeoutSeconds != 0 {
		c.Embeddings.TimeoutSeconds = other.Embeddings.TimeoutSeconds
	}

	if other.LLM.Provider != "" {
		c.LLM.Provider = other.LLM.Provider
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.Host != "" {
		c.LLM.Host = other.LLM.Host
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.TimeoutSeconds != 0 {
		c.LLM.TimeoutSeconds = other.LLM.TimeoutSeconds
	}

	// Weights: 0 is not a practical value, so only merge non-zero values
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.ChunkSize != 0 {
		c.Search.ChunkSize = other.Search.ChunkSize
	}
	if other.Search.ChunkOverlap != 0 {
		c.Search.ChunkOverlap = other.Search.ChunkOverlap
	}
	if other.Search.CacheTTLSeconds != 0 {
		c.Search.CacheTTLSeconds = other.Search.CacheTTLSeconds
	}
	if other.Search.CacheMaxSize != 0 {
		c.Search.CacheMaxSize = other.Search.CacheMaxSize
	}
	if other.Search.TimeoutSeconds != 0 {
		c.Search.TimeoutSeconds = other.Search.TimeoutSeconds
	}

	if other.Router.ConfidenceThreshold != 0 {
		c.Router.ConfidenceThreshold = other.Router.ConfidenceThreshold
	}
	if other.Router.MultiIntentThreshold != 0 {
		c.Router.MultiIntentThreshold = other.Router.MultiIntentThreshold
	}

	if other.Cache.TTLHours != 0 {
		c.Cache.TTLHours = other.Cache.TTLHours
	}
	if other.Cache.SimilarityThreshold != 0 {
		c.Cache.SimilarityThreshold = other.Cache.SimilarityThreshold
	}
	if other.Cache.SemanticScanLimit != 0 {
		c.Cache.SemanticScanLimit = other.Cache.SemanticScanLimit
	}
	if other.Cache.WriteQueueSize != 0 {
		c.Cache.WriteQueueSize = other.Cache.WriteQueueSize
	}

	if other.Agents.HistoryMax != 0 {
		c.Agents.HistoryMax = other.Agents.HistoryMax
	}
	if other.Agents.ConfidenceHigh != 0 {
		c.Agents.ConfidenceHigh = other.Agents.ConfidenceHigh
	}
	if other.Agents.ConfidenceMedium != 0 {
		c.Agents.ConfidenceMedium = other.Agents.ConfidenceMedium
	}

	if other.Escalation.ConfidenceThreshold != 0 {
		c.Escalation.ConfidenceThreshold = other.Escalation.ConfidenceThreshold
	}
	if other.Escalation.RepeatThreshold != 0 {
		c.Escalation.RepeatThreshold = other.Escalation.RepeatThreshold
	}

	if other.Watcher.Enabled {
		c.Watcher.Enabled = true
	}
	if other.Watcher.Debounce != "" {
		c.Watcher.Debounce = other.Watcher.Debounce
	}
	if other.Watcher.PollPeriod != "" {
		c.Watcher.PollPeriod = other.Watcher.PollPeriod
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies ONBOARDQA_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ONBOARDQA_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("ONBOARDQA_POLICIES_DIR"); v != "" {
		c.Paths.PoliciesDir = v
	}
	if v := os.Getenv("ONBOARDQA_CLASSIFIER_PATH"); v != "" {
		c.Paths.ClassifierPath = v
	}
	if v := os.Getenv("ONBOARDQA_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("ONBOARDQA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("ONBOARDQA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		if c.LLM.Host == "" {
			c.LLM.Host = v
		}
	}
	if v := os.Getenv("ONBOARDQA_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	// Weights support explicit zero values via env vars
	if v := os.Getenv("ONBOARDQA_SEMANTIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("ONBOARDQA_BM25_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("ONBOARDQA_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}

	sum := c.Search.SemanticWeight + c.Search.BM25Weight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("semantic_weight + bm25_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", c.Search.TopK)
	}
	if c.Search.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative, got %d", c.Search.ChunkSize)
	}
	if c.Search.ChunkOverlap >= c.Search.ChunkSize && c.Search.ChunkSize > 0 {
		return fmt.Errorf("chunk_overlap must be smaller than chunk_size, got %d >= %d",
			c.Search.ChunkOverlap, c.Search.ChunkSize)
	}

	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be between 0 and 1, got %f", c.Cache.SimilarityThreshold)
	}
	if c.Router.ConfidenceThreshold < 0 || c.Router.ConfidenceThreshold > 1 {
		return fmt.Errorf("router.confidence_threshold must be between 0 and 1, got %f", c.Router.ConfidenceThreshold)
	}

	if c.Embeddings.Provider != "" { // Empty string triggers auto-detection
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validLLM := map[string]bool{"ollama": true, "static": true}
	if !validLLM[strings.ToLower(c.LLM.Provider)] {
		return fmt.Errorf("llm.provider must be 'ollama' or 'static', got %s", c.LLM.Provider)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

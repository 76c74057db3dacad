package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/cache"
	"github.com/Aman-CERP/onboardqa/internal/classify"
	"github.com/Aman-CERP/onboardqa/internal/config"
	"github.com/Aman-CERP/onboardqa/internal/embed"
	"github.com/Aman-CERP/onboardqa/internal/escalate"
	"github.com/Aman-CERP/onboardqa/internal/llm"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/router"
	"github.com/Aman-CERP/onboardqa/internal/search"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// embedderInitTimeout bounds embedder construction, which may contact a
// local Ollama instance.
const embedderInitTimeout = 15 * time.Second

// pipelineOptions controls how the stores are opened.
type pipelineOptions struct {
	// createVectors tolerates a missing vector index file (fresh ingest).
	createVectors bool
	// requireIndex fails fast when no metadata database exists yet.
	requireIndex bool
}

// pipeline bundles the storage and embedding dependencies every
// command builds on.
type pipeline struct {
	Config           *config.Config
	Metadata         *store.SQLiteMetadataStore
	BM25             *store.BleveBM25Index
	Vectors          *store.HNSWStore
	Embedder         embed.Embedder
	EmbedderProvider embed.ProviderType

	vectorPath string
}

// openPipeline opens the metadata, BM25 and vector stores and creates
// the configured embedder. Callers must Close the result.
func openPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions) (*pipeline, error) {
	dataDir := cfg.Paths.DataDir
	metadataPath := filepath.Join(dataDir, "metadata.db")

	if opts.requireIndex && !fileExists(metadataPath) {
		return nil, fmt.Errorf("no index found in %s\nRun 'onboardqa ingest' to create one", dataDir)
	}

	p := &pipeline{
		Config:     cfg,
		vectorPath: filepath.Join(dataDir, "vectors.hnsw"),
	}

	metadata, err := store.NewSQLiteMetadataStore(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	p.Metadata = metadata

	bm25, err := store.NewBleveBM25Index(filepath.Join(dataDir, "bm25.bleve"), store.DefaultBM25Config())
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to open BM25 index: %w", err)
	}
	p.BM25 = bm25

	initCtx, cancel := context.WithTimeout(ctx, embedderInitTimeout)
	defer cancel()

	provider := embed.ProviderType(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(initCtx, embed.Options{
		Provider:      provider,
		Model:         cfg.Embeddings.Model,
		Host:          cfg.Embeddings.OllamaHost,
		Dimensions:    cfg.Embeddings.Dimensions,
		BatchSize:     cfg.Embeddings.BatchSize,
		Timeout:       time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
		CacheCapacity: cfg.Embeddings.CacheCapacity,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	p.Embedder = embedder
	p.EmbedderProvider = provider
	if provider == embed.ProviderAuto {
		if embedder.ModelName() == "static" {
			p.EmbedderProvider = embed.ProviderStatic
		} else {
			p.EmbedderProvider = embed.ProviderOllama
		}
	}

	// An index built with a different embedding model cannot serve the
	// current embedder's query vectors.
	if dims, err := store.ReadHNSWStoreDimensions(p.vectorPath); err == nil && dims > 0 && dims != embedder.Dimensions() {
		slog.Warn("embedding dimension mismatch, re-ingest required",
			slog.Int("index", dims),
			slog.Int("embedder", embedder.Dimensions()))
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	p.Vectors = vectors

	if _, err := os.Stat(p.vectorPath); err == nil {
		if loadErr := vectors.Load(p.vectorPath); loadErr != nil {
			if !opts.createVectors {
				p.Close()
				return nil, fmt.Errorf("failed to load vector index: %w", loadErr)
			}
			slog.Debug("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	} else if !opts.createVectors && opts.requireIndex {
		slog.Debug("vector_index_missing", slog.String("path", p.vectorPath))
	}

	return p, nil
}

// SaveVectors persists the vector index to disk.
func (p *pipeline) SaveVectors() error {
	return p.Vectors.Save(p.vectorPath)
}

// Close releases every opened dependency. Safe on a partially
// constructed pipeline.
func (p *pipeline) Close() {
	if p.Embedder != nil {
		_ = p.Embedder.Close()
	}
	if p.Vectors != nil {
		_ = p.Vectors.Close()
	}
	if p.BM25 != nil {
		_ = p.BM25.Close()
	}
	if p.Metadata != nil {
		_ = p.Metadata.Close()
	}
}

// newSearchEngine builds the hybrid engine from the pipeline stores.
func (p *pipeline) newSearchEngine(logger *slog.Logger) (*search.Engine, error) {
	cfg := p.Config.Search
	return search.NewEngine(p.BM25, p.Vectors, p.Embedder, p.Metadata, search.EngineConfig{
		SemanticWeight: cfg.SemanticWeight,
		BM25Weight:     cfg.BM25Weight,
		TopK:           cfg.TopK,
		CacheTTL:       time.Duration(cfg.CacheTTLSeconds) * time.Second,
		CacheMaxSize:   cfg.CacheMaxSize,
		Timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, logger)
}

// qaService is the fully wired answering pipeline behind ask and serve.
type qaService struct {
	*pipeline

	Engine       *search.Engine
	Generator    llm.Generator
	Cache        *cache.Store
	Orchestrator *orchestrate.Orchestrator
}

// buildService wires the orchestrator and everything underneath it.
func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*qaService, error) {
	p, err := openPipeline(ctx, cfg, pipelineOptions{requireIndex: true})
	if err != nil {
		return nil, err
	}

	svc := &qaService{pipeline: p}

	svc.Engine, err = p.newSearchEngine(logger)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to create search engine: %w", err)
	}

	svc.Generator, err = llm.NewGenerator(ctx, llm.Options{
		Provider:    llm.Provider(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		Host:        cfg.LLM.Host,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to create text generator: %w", err)
	}

	// A missing classifier artifact degrades to keyword-only routing.
	classifier, err := classify.Load(cfg.Paths.ClassifierPath)
	if err != nil {
		logger.Warn("classifier unavailable, keyword-only routing",
			slog.String("path", cfg.Paths.ClassifierPath),
			slog.String("error", err.Error()))
		classifier = nil
	}

	rtr := router.NewRouter(classifier, router.Config{
		ConfidenceThreshold:  cfg.Router.ConfidenceThreshold,
		MultiIntentThreshold: cfg.Router.MultiIntentThreshold,
	}, logger)

	handlers := make(map[string]agent.Handler, len(store.Departments)+1)
	for _, dept := range store.Departments {
		handlers[dept] = agent.NewSpecialist(dept, svc.Engine, svc.Generator, logger)
	}
	handlers[router.DeptProgress] = agent.NewProgressHandler(svc.Generator, logger)

	svc.Cache, err = cache.NewStore(filepath.Join(cfg.Paths.DataDir, "cache.db"), p.Embedder, cache.Config{
		TTL:                 time.Duration(cfg.Cache.TTLHours) * time.Hour,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		ScanLimit:           cfg.Cache.SemanticScanLimit,
		QueueSize:           cfg.Cache.WriteQueueSize,
	}, logger)
	if err != nil {
		logger.Warn("response cache unavailable", slog.String("error", err.Error()))
		svc.Cache = nil
	}

	opts := orchestrate.Options{
		Router:   rtr,
		Handlers: handlers,
		Memory:   agent.NewConversationMemoryWithCapacity(cfg.Agents.HistoryMax),
		Escalation: escalate.NewServiceWithConfig(escalate.Config{
			ConfidenceThreshold: cfg.Escalation.ConfidenceThreshold,
			RepeatThreshold:     cfg.Escalation.RepeatThreshold,
		}),
		Metadata: p.Metadata,
		Levels: agent.LevelThresholds{
			High:   cfg.Agents.ConfidenceHigh,
			Medium: cfg.Agents.ConfidenceMedium,
		},
		Logger: logger,
	}
	if svc.Cache != nil {
		opts.Cache = svc.Cache
	}
	svc.Orchestrator = orchestrate.New(opts)

	return svc, nil
}

// Close drains the orchestrator then releases every dependency.
func (s *qaService) Close() {
	if s.Orchestrator != nil {
		_ = s.Orchestrator.Close()
	}
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
	if s.Generator != nil {
		_ = s.Generator.Close()
	}
	if s.pipeline != nil {
		s.pipeline.Close()
	}
}

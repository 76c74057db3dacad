package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external service)
	ProviderStatic ProviderType = "static"

	// ProviderAuto probes Ollama and falls back to static
	ProviderAuto ProviderType = ""
)

// Options carries factory settings resolved from configuration.
type Options struct {
	Provider      ProviderType
	Model         string
	Host          string
	Dimensions    int
	BatchSize     int
	Timeout       time.Duration
	CacheCapacity int
}

// NewEmbedder creates an embedder based on the provider type.
// Explicit providers fail hard when unavailable; auto-detection falls
// back from Ollama to the static embedder with a warning. The result is
// always wrapped in an LRU cache.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var embedder Embedder
	var err error

	switch ProviderType(strings.ToLower(string(opts.Provider))) {
	case ProviderOllama:
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w", err)
		}

	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderAuto:
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			slog.Warn("embedder_fallback",
				slog.String("from", "ollama"),
				slog.String("to", "static"),
				slog.String("reason", err.Error()))
			embedder = NewStaticEmbedder()
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}

	return NewCachedEmbedder(embedder, opts.CacheCapacity), nil
}

func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	return NewOllamaEmbedder(ctx, cfg)
}

// ParseProvider converts a string to ProviderType.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

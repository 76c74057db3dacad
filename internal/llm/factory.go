package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider identifies a text generation backend.
type Provider string

const (
	// ProviderOllama uses a local Ollama server.
	ProviderOllama Provider = "ollama"

	// ProviderStatic uses the extractive fallback.
	ProviderStatic Provider = "static"

	// ProviderAuto tries Ollama and falls back to static.
	ProviderAuto Provider = ""
)

// Options configures generator creation.
type Options struct {
	Provider    Provider
	Model       string
	Host        string
	Temperature float64
	Timeout     time.Duration
}

// NewGenerator creates a text generator. An explicitly requested
// provider that is unavailable is an error; auto mode falls back to
// the static generator with a logged warning.
func NewGenerator(ctx context.Context, opts Options) (Generator, error) {
	switch opts.Provider {
	case ProviderOllama:
		g := newOllama(opts)
		if !g.Available(ctx) {
			_ = g.Close()
			return nil, fmt.Errorf("ollama not reachable at %s", opts.Host)
		}
		return g, nil

	case ProviderStatic:
		return NewStaticGenerator(), nil

	case ProviderAuto:
		g := newOllama(opts)
		if g.Available(ctx) {
			return g, nil
		}
		_ = g.Close()
		slog.Warn("ollama unavailable, answers degrade to extractive mode",
			slog.String("host", opts.Host))
		return NewStaticGenerator(), nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

func newOllama(opts Options) *OllamaGenerator {
	return NewOllamaGenerator(OllamaConfig{
		Host:        opts.Host,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		Timeout:     opts.Timeout,
	})
}

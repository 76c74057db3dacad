// Package llm generates answer text. Ollama is the default provider;
// a static extractive generator serves environments without a model
// server.
package llm

import (
	"context"
	"time"
)

// Defaults for the Ollama text generator.
const (
	DefaultHost        = "http://localhost:11434"
	DefaultModel       = "llama3.1:8b"
	DefaultTemperature = 0.1
	DefaultTimeout     = 30 * time.Second
)

// Request is one generation request. System pins the handler's domain;
// Prompt carries the user question plus retrieved context.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Generator produces one text completion per request.
type Generator interface {
	// Generate returns a single completion for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the generator is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

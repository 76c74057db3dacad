package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaEmbedder generates embeddings via the Ollama HTTP API.
type OllamaEmbedder struct {
	config     OllamaConfig
	client     *http.Client
	transport  *http.Transport
	model      string
	dimensions int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama-backed embedder.
// It verifies the server is reachable, resolves the model (falling back
// through cfg.FallbackModels if the primary is not installed), and
// detects the embedding dimension unless cfg.Dimensions is set.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBatchTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = OllamaConnectTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}

	e := &OllamaEmbedder{
		config:    cfg,
		transport: transport,
		// No client-level timeout: each request carries its own context
		client: &http.Client{Transport: transport},
	}

	if cfg.SkipHealthCheck {
		e.model = cfg.Model
		e.dimensions = cfg.Dimensions
		return e, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	model, err := e.findAvailableModel(checkCtx)
	if err != nil {
		return nil, fmt.Errorf("ollama health check failed: %w", err)
	}
	e.model = model

	if cfg.Dimensions > 0 {
		e.dimensions = cfg.Dimensions
	} else {
		dims, err := e.detectDimensions(ctx)
		if err != nil {
			return nil, fmt.Errorf("dimension detection failed: %w", err)
		}
		e.dimensions = dims
	}

	slog.Debug("ollama_embedder_ready",
		slog.String("model", e.model),
		slog.Int("dimensions", e.dimensions))

	return e, nil
}

// findAvailableModel returns the configured model if installed, else the
// first installed fallback.
func (e *OllamaEmbedder) findAvailableModel(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cannot reach ollama at %s: %w", e.config.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var list OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", fmt.Errorf("failed to parse model list: %w", err)
	}

	installed := make(map[string]bool, len(list.Models))
	for _, m := range list.Models {
		installed[m.Name] = true
		// Models often carry a ":latest" tag
		installed[strings.TrimSuffix(m.Name, ":latest")] = true
	}

	candidates := append([]string{e.config.Model}, e.config.FallbackModels...)
	for _, c := range candidates {
		if installed[c] {
			if c != e.config.Model {
				slog.Warn("embedding_model_fallback",
					slog.String("requested", e.config.Model),
					slog.String("using", c))
			}
			return c, nil
		}
	}

	return "", fmt.Errorf("no embedding model installed (tried %s)", strings.Join(candidates, ", "))
}

// detectDimensions embeds a probe string and measures the result.
func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	vecs, err := e.doEmbedWithRetry(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("empty embedding from model %s", e.model)
	}
	return len(vecs[0]), nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// batches of the configured size.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))

		vecs, err := e.doEmbedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		results = append(results, vecs...)

		if e.config.ProgressFunc != nil {
			e.config.ProgressFunc(end, len(texts))
		}
	}

	return results, nil
}

// doEmbedWithRetry retries transient failures with exponential backoff.
func (e *OllamaEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<uint(attempt-1)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vecs, err := e.doEmbed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		// Context errors are not transient
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("embed failed after %d attempts: %w", e.config.MaxRetries+1, lastErr)
}

// doEmbed performs a single /api/embed request. The HTTP call runs in a
// goroutine so cancellation can force-close connections rather than
// wait for the server.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(OllamaEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	type result struct {
		vecs [][]float32
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := e.client.Do(req)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resultCh <- result{err: fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
			return
		}

		var parsed OllamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			resultCh <- result{err: fmt.Errorf("failed to parse response: %w", err)}
			return
		}

		if len(parsed.Embeddings) != len(texts) {
			resultCh <- result{err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))}
			return
		}

		vecs := make([][]float32, len(parsed.Embeddings))
		for i, emb := range parsed.Embeddings {
			v := make([]float32, len(emb))
			for j, f := range emb {
				v[j] = float32(f)
			}
			vecs[i] = normalizeVector(v)
		}
		resultCh <- result{vecs: vecs}
	}()

	select {
	case <-reqCtx.Done():
		// Abandon the in-flight request so the goroutine unblocks
		e.transport.CloseIdleConnections()
		return nil, reqCtx.Err()
	case r := <-resultCh:
		return r.vecs, r.err
	}
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

// Available checks whether the Ollama server responds.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, e.config.ConnectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases HTTP resources. Safe to call multiple times.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

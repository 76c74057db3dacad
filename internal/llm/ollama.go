package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	qaerrors "github.com/Aman-CERP/onboardqa/internal/errors"
)

// OllamaConfig configures the Ollama text generator.
type OllamaConfig struct {
	Host        string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OllamaGenerator calls a local Ollama server's generate endpoint.
type OllamaGenerator struct {
	config OllamaConfig
	client *http.Client
	mu     sync.RWMutex
	closed bool
}

var _ Generator = (*OllamaGenerator)(nil)

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator with the given configuration,
// applying defaults for zero values.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaGenerator{
		config: cfg,
		// No client-level timeout: each request carries its own
		// context deadline.
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Generate produces one completion. The request temperature, when set,
// overrides the configured default.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", qaerrors.TextGeneratorError("generator is closed", nil)
	}
	g.mu.RUnlock()

	temperature := g.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	body, err := json.Marshal(generateRequest{
		Model:   g.config.Model,
		System:  req.System,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: generateOptions{Temperature: temperature},
	})
	if err != nil {
		return "", qaerrors.TextGeneratorError("failed to encode generate request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", qaerrors.TextGeneratorError("failed to build generate request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	type result struct {
		text string
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := g.client.Do(httpReq)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resultCh <- result{err: fmt.Errorf("generate returned status %d: %s", resp.StatusCode, detail)}
			return
		}

		var gen generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
			resultCh <- result{err: fmt.Errorf("decode generate response: %w", err)}
			return
		}
		resultCh <- result{text: strings.TrimSpace(gen.Response)}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return "", qaerrors.TextGeneratorError("text generation failed", r.err)
		}
		return r.text, nil
	case <-reqCtx.Done():
		// Abandon the connection so the pool does not reuse it
		g.client.CloseIdleConnections()
		return "", qaerrors.TextGeneratorError("text generation timed out", reqCtx.Err())
	}
}

// ModelName returns the configured model.
func (g *OllamaGenerator) ModelName() string {
	return g.config.Model
}

// Available checks if the Ollama server responds.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases connections. Safe to call more than once.
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.client.CloseIdleConnections()
	return nil
}

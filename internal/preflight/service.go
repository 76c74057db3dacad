package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/lifecycle"
)

// CheckCorpus verifies the policies directory exists and contains at
// least one markdown document.
func (c *Checker) CheckCorpus(policiesDir string) CheckResult {
	result := CheckResult{
		Name:     "policy_corpus",
		Required: true,
	}

	entries, err := os.ReadDir(policiesDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("policies directory not readable: %s", policiesDir)
		result.Details = "Set paths.policies_dir in .onboardqa.yaml or create the directory"
		return result
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			count++
		}
	}

	if count == 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("no markdown policy files in %s", policiesDir)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d policy file(s) in %s", count, policiesDir)
	return result
}

// CheckClassifier verifies the router classifier artifact is present.
// A missing artifact is a warning: routing degrades to keyword-only.
func (c *Checker) CheckClassifier(path string) CheckResult {
	result := CheckResult{
		Name:     "classifier",
		Required: false,
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("artifact not found at %s (keyword-only routing)", path)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("artifact present (%s)", formatBytes(uint64(info.Size())))
	return result
}

// CheckOllamaModel verifies Ollama is reachable and serves the given
// model. Failures are warnings: embeddings fall back to the static
// provider and generation to the canned generator.
func (c *Checker) CheckOllamaModel(ctx context.Context, host, model, name string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: false,
	}

	mgr := lifecycle.NewOllamaManagerWithHost(host)

	running, err := mgr.IsRunning()
	if err != nil || !running {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("Ollama not reachable at %s (static fallback)", mgr.Host())
		result.Details = "Install and start Ollama for semantic answers"
		return result
	}

	hasModel, err := mgr.HasModel(ctx, model)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to list models: %v", err)
		return result
	}
	if !hasModel {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("model %q not pulled (static fallback)", model)
		result.Details = fmt.Sprintf("Run 'ollama pull %s'", model)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%q available at %s", model, mgr.Host())
	return result
}

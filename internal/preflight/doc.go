// Package preflight provides system validation checks run before
// onboardqa ingests the corpus or starts serving.
//
// The package validates:
//   - Disk space availability (minimum 100MB)
//   - Memory availability (minimum 1GB)
//   - Write permissions in the data directory
//   - File descriptor limits (minimum 1024)
//   - Policy corpus presence
//   - Classifier artifact presence (non-critical)
//   - Ollama availability and model presence (non-critical)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight

// Package watcher watches the policy document directory and keeps the
// index and response cache fresh.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: polling for environments where fsnotify fails (network
//     mounts, Docker volumes)
//
// Events are debounced so editor save bursts and bulk copies trigger a
// single re-ingest, and filtered to policy document extensions.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, policiesDir)
//
//	for batch := range w.Events() {
//	    // re-ingest, invalidate affected departments
//	    _ = batch
//	}
package watcher

package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/ingest"
	"github.com/Aman-CERP/onboardqa/internal/watcher"
)

// Watcher integration tests verify that changes to the policies
// directory are detected and drive re-ingestion.

func newTestWatcher(t *testing.T) *watcher.HybridWatcher {
	t.Helper()

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  100 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_PolicyCreated_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher over an empty policies directory
	dir := t.TempDir()
	w := newTestWatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = w.Start(ctx, dir)
	}()

	// Wait for the watcher to initialize
	time.Sleep(200 * time.Millisecond)

	// When: creating a new policy file
	err := os.WriteFile(filepath.Join(dir, "hr_leave.md"), []byte("# Leave Policy"), 0o644)
	require.NoError(t, err)

	// Then: a create event is emitted
	select {
	case events := <-w.Events():
		require.NotEmpty(t, events)
		foundCreate := false
		for _, e := range events {
			if e.Operation == watcher.OpCreate && e.Path == "hr_leave.md" {
				foundCreate = true
				break
			}
		}
		assert.True(t, foundCreate, "Should receive CREATE event for hr_leave.md")
	case <-ctx.Done():
		t.Fatal("Timed out waiting for create event")
	}
}

func TestWatcher_PolicyModified_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a directory with an existing policy
	dir := t.TempDir()
	policy := filepath.Join(dir, "it_vpn.md")
	require.NoError(t, os.WriteFile(policy, []byte("# VPN"), 0o644))

	w := newTestWatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = w.Start(ctx, dir)
	}()

	time.Sleep(200 * time.Millisecond)

	// When: modifying the policy
	require.NoError(t, os.WriteFile(policy, []byte("# VPN\n\nUse the backup gateway."), 0o644))

	// Then: a modify event is emitted
	select {
	case events := <-w.Events():
		require.NotEmpty(t, events)
		foundModify := false
		for _, e := range events {
			if e.Operation == watcher.OpModify && e.Path == "it_vpn.md" {
				foundModify = true
				break
			}
		}
		assert.True(t, foundModify, "Should receive MODIFY event for it_vpn.md")
	case <-ctx.Done():
		t.Fatal("Timed out waiting for modify event")
	}
}

func TestWatcher_PolicyDeleted_EmitsEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a directory with an existing policy
	dir := t.TempDir()
	policy := filepath.Join(dir, "security_badges.md")
	require.NoError(t, os.WriteFile(policy, []byte("# Badges"), 0o644))

	w := newTestWatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = w.Start(ctx, dir)
	}()

	time.Sleep(200 * time.Millisecond)

	// When: deleting the policy
	require.NoError(t, os.Remove(policy))

	// Then: a delete event is emitted
	select {
	case events := <-w.Events():
		require.NotEmpty(t, events)
		foundDelete := false
		for _, e := range events {
			if e.Operation == watcher.OpDelete && e.Path == "security_badges.md" {
				foundDelete = true
				break
			}
		}
		assert.True(t, foundDelete, "Should receive DELETE event for security_badges.md")
	case <-ctx.Done():
		t.Fatal("Timed out waiting for delete event")
	}
}

func TestWatcher_NonPolicyExtension_Ignored(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher with the default markdown extension allowlist
	dir := t.TempDir()
	w := newTestWatcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		_ = w.Start(ctx, dir)
	}()

	time.Sleep(200 * time.Millisecond)

	// When: creating a non-policy file and a policy file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.log"), []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hr_leave.md"), []byte("# Leave"), 0o644))

	// Then: no event mentions the .log file
	select {
	case events := <-w.Events():
		for _, e := range events {
			assert.NotEqual(t, "debug.log", e.Path, "Non-markdown files should be filtered")
		}
	case <-ctx.Done():
		// Acceptable: the batch may not arrive before the deadline
	}
}

func TestWatcher_IsHealthy_ReportsCorrectly(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	require.NoError(t, err)

	assert.True(t, w.IsHealthy(), "New watcher should be healthy")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsHealthy(), "Stopped watcher should not be healthy")
}

func TestWatcher_WatcherType_ReturnsCorrectType(t *testing.T) {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Contains(t, []string{"fsnotify", "polling"}, w.WatcherType())
}

// countingIngester records re-ingest invocations.
type countingIngester struct {
	mu    sync.Mutex
	calls int
}

func (c *countingIngester) IngestDirectory(_ context.Context, _ string) (*ingest.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &ingest.Result{}, nil
}

func (c *countingIngester) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestWatcher_Reindexer_TriggersIngestOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a reindexer wired to a counting ingester
	dir := t.TempDir()
	w := newTestWatcher(t)

	ing := &countingIngester{}
	r := watcher.NewReindexer(w, ing, nil, dir, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = w.Start(ctx, dir)
	}()
	go func() {
		_ = r.Run(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	// When: a policy file changes
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance_expenses.md"), []byte("# Expenses"), 0o644))

	// Then: a re-ingest runs
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if ing.Calls() > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Reindexer did not trigger an ingest")
}

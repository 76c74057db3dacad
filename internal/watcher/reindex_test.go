package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/onboardqa/internal/ingest"
)

type fakeWatcher struct {
	events chan []FileEvent
	errs   chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		events: make(chan []FileEvent, 10),
		errs:   make(chan error, 10),
	}
}

func (f *fakeWatcher) Start(ctx context.Context, path string) error { return nil }
func (f *fakeWatcher) Stop() error                                  { return nil }
func (f *fakeWatcher) Events() <-chan []FileEvent                   { return f.events }
func (f *fakeWatcher) Errors() <-chan error                         { return f.errs }

type fakeIngester struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeIngester) IngestDirectory(ctx context.Context, path string) (*ingest.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &ingest.Result{Files: map[string]int{"hr_policies.md": 3}, TotalChunks: 3}, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInvalidator struct {
	mu    sync.Mutex
	depts []string
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, department string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depts = append(f.depts, department)
	return nil
}

func (f *fakeInvalidator) invalidated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.depts...)
}

func TestAffectedDepartments(t *testing.T) {
	batch := []FileEvent{
		{Path: "hr_policies.md", Operation: OpModify},
		{Path: "hr_benefits.md", Operation: OpModify},
		{Path: "it_security.md", Operation: OpCreate},
		{Path: "archive", Operation: OpCreate, IsDir: true},
	}

	assert.Equal(t, []string{"HR", "IT"}, affectedDepartments(batch))
}

func TestAffectedDepartments_UnknownPrefix_General(t *testing.T) {
	batch := []FileEvent{{Path: "handbook.md", Operation: OpModify}}
	assert.Equal(t, []string{"General"}, affectedDepartments(batch))
}

func TestReindexer_InvalidatesThenReingests(t *testing.T) {
	w := newFakeWatcher()
	ing := &fakeIngester{}
	inv := &fakeInvalidator{}
	r := NewReindexer(w, ing, inv, "/policies", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	w.events <- []FileEvent{{Path: "finance_expenses.md", Operation: OpModify}}

	require.Eventually(t, func() bool {
		return ing.count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Finance"}, inv.invalidated())

	cancel()
	<-done
}

func TestReindexer_DirectoryOnlyBatch_NoReingest(t *testing.T) {
	w := newFakeWatcher()
	ing := &fakeIngester{}
	r := NewReindexer(w, ing, nil, "/policies", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	w.events <- []FileEvent{{Path: "archive", Operation: OpCreate, IsDir: true}}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, ing.count())

	cancel()
	<-done
}

func TestReindexer_StopsWhenWatcherCloses(t *testing.T) {
	w := newFakeWatcher()
	r := NewReindexer(w, &fakeIngester{}, nil, "/policies", nil)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	close(w.events)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reindexer did not stop when watcher closed")
	}
}

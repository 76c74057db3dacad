package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blevesearch "github.com/blevesearch/bleve/v2/search"
	index "github.com/blevesearch/bleve_index_api"
)

func newTestBM25(t *testing.T) *BleveBM25Index {
	t.Helper()
	idx, err := NewBleveBM25Index("", DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedPolicyDocs(t *testing.T, idx *BleveBM25Index) {
	t.Helper()
	docs := []*Document{
		{ID: "hr_policies_0", Content: "Employees accrue 20 days of annual leave and vacation per year.", Department: DeptHR},
		{ID: "hr_policies_1", Content: "Parental leave covers 16 weeks of paid maternity or paternity time.", Department: DeptHR},
		{ID: "it_policies_0", Content: "To set up VPN access, install the client and authenticate with MFA.", Department: DeptIT},
		{ID: "it_policies_1", Content: "New laptops are provisioned by the IT help desk within two days.", Department: DeptIT},
		{ID: "finance_policies_0", Content: "Expense reimbursement requires receipts submitted within 30 days.", Department: DeptFinance},
	}
	require.NoError(t, idx.Index(context.Background(), docs))
}

func TestBM25ScoringModelConfigured(t *testing.T) {
	cfg := DefaultBM25Config()
	m, err := createIndexMapping(cfg)
	require.NoError(t, err)

	assert.Equal(t, index.BM25Scoring, m.ScoringModel)
	assert.Equal(t, cfg.K1, blevesearch.BM25_k1)
	assert.Equal(t, cfg.B, blevesearch.BM25_b)
}

func TestBM25SearchRanksKeywordMatch(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	results, err := idx.Search(context.Background(), "VPN setup", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "it_policies_0", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Contains(t, results[0].MatchedTerms, "vpn")
}

func TestBM25DepartmentFilter(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	// "leave" appears in HR docs; filter to Finance must exclude them
	results, err := idx.Search(context.Background(), "leave days", DeptFinance, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "finance_policies_0", r.DocID)
	}

	hrResults, err := idx.Search(context.Background(), "leave days", DeptHR, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hrResults)
	for _, r := range hrResults {
		assert.Contains(t, []string{"hr_policies_0", "hr_policies_1"}, r.DocID)
	}
}

func TestBM25EmptyQuery(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	results, err := idx.Search(context.Background(), "   ", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25NoMatch(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	results, err := idx.Search(context.Background(), "zebra habitats", "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25Delete(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	require.NoError(t, idx.Delete(context.Background(), []string{"it_policies_0"}))

	results, err := idx.Search(context.Background(), "VPN", "", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "it_policies_0", r.DocID)
	}
}

func TestBM25AllIDsAndStats(t *testing.T) {
	idx := newTestBM25(t)
	seedPolicyDocs(t, idx)

	ids, err := idx.AllIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 5)

	stats := idx.Stats()
	assert.Equal(t, 5, stats.DocumentCount)
}

func TestBM25ClosedIndex(t *testing.T) {
	idx := newTestBM25(t)
	require.NoError(t, idx.Close())

	_, err := idx.Search(context.Background(), "vpn", "", 5)
	assert.Error(t, err)
	assert.NoError(t, idx.Close()) // idempotent
}

func TestBM25PersistentIndexReopen(t *testing.T) {
	path := t.TempDir() + "/bm25"

	idx, err := NewBleveBM25Index(path, DefaultBM25Config())
	require.NoError(t, err)
	seedPolicyDocs(t, idx)
	require.NoError(t, idx.Close())

	reopened, err := NewBleveBM25Index(path, DefaultBM25Config())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(context.Background(), "expense receipts", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "finance_policies_0", results[0].DocID)
}

package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// queryCache memoizes fused search results for repeated queries.
// Entries expire after the configured TTL; capacity evictions are LRU.
type queryCache struct {
	lru *expirable.LRU[string, []*SearchResult]
}

func newQueryCache(maxSize int, ttl time.Duration) *queryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &queryCache{
		lru: expirable.NewLRU[string, []*SearchResult](maxSize, nil, ttl),
	}
}

// cacheKey builds the lookup key from the normalized query, the
// department filter, and the result count.
func cacheKey(query, department string, k int) string {
	if department == "" {
		department = "all"
	}
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d",
		strings.ToLower(strings.TrimSpace(query)), department, k))
	return hex.EncodeToString(h[:])
}

func (c *queryCache) Get(key string) ([]*SearchResult, bool) {
	return c.lru.Get(key)
}

func (c *queryCache) Add(key string, results []*SearchResult) {
	c.lru.Add(key, results)
}

// Purge drops every entry. Called after a re-ingest so stale results
// never outlive the corpus they came from.
func (c *queryCache) Purge() {
	c.lru.Purge()
}

func (c *queryCache) Len() int {
	return c.lru.Len()
}

package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusInfo_Zero(t *testing.T) {
	info := StatusInfo{}

	assert.Empty(t, info.CorpusPath)
	assert.Equal(t, 0, info.TotalFiles)
	assert.Equal(t, 0, info.TotalChunks)
	assert.True(t, info.LastIndexed.IsZero())
}

func TestStatusInfo_JSONSerialization(t *testing.T) {
	info := StatusInfo{
		CorpusPath:     "./policies",
		TotalFiles:     9,
		TotalChunks:    142,
		LastIndexed:    time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		Departments:    map[string]int{"HR": 40, "IT": 35},
		CacheEntries:   12,
		MetadataSize:   1024 * 1024,
		BM25Size:       2 * 1024 * 1024,
		VectorSize:     10 * 1024 * 1024,
		TotalSize:      13 * 1024 * 1024,
		EmbedderType:   "static",
		EmbedderStatus: "ready",
		WatcherStatus:  "running",
	}

	data, err := json.Marshal(info)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "./policies", parsed["corpus_path"])
	assert.Equal(t, float64(9), parsed["total_files"])
	assert.Equal(t, float64(142), parsed["total_chunks"])
	assert.Equal(t, float64(12), parsed["cache_entries"])
	assert.Equal(t, "running", parsed["watcher_status"])
}

func TestStatusRenderer_Render_Basic(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		CorpusPath:     "./policies",
		TotalFiles:     9,
		TotalChunks:    142,
		LastIndexed:    time.Now(),
		Departments:    map[string]int{"HR": 40, "IT": 35, "General": 10},
		CacheEntries:   3,
		MetadataSize:   512 * 1024,
		BM25Size:       1024 * 1024,
		VectorSize:     5 * 1024 * 1024,
		TotalSize:      6*1024*1024 + 512*1024,
		EmbedderType:   "static",
		EmbedderStatus: "ready",
		WatcherStatus:  "stopped",
	}

	require.NoError(t, r.Render(info))

	output := buf.String()
	assert.Contains(t, output, "./policies")
	assert.Contains(t, output, "142")
	assert.Contains(t, output, "HR:")
	assert.Contains(t, output, "Cached responses: 3")
	assert.Contains(t, output, "ready")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		CorpusPath:  "./policies",
		TotalFiles:  9,
		TotalChunks: 142,
	}

	require.NoError(t, r.RenderJSON(info))

	var parsed StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "./policies", parsed.CorpusPath)
	assert.Equal(t, 9, parsed.TotalFiles)
}

func TestStatusRenderer_NoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		CorpusPath:     "./policies",
		EmbedderStatus: "ready",
	}

	require.NoError(t, r.Render(info))

	output := buf.String()
	assert.NotContains(t, output, "\x1b[")
	assert.NotContains(t, output, "\033[")
}

func TestStatusRenderer_EmbedderOffline(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	info := StatusInfo{
		CorpusPath:     "./policies",
		EmbedderType:   "static",
		EmbedderStatus: "offline",
	}

	require.NoError(t, r.Render(info))
	assert.Contains(t, buf.String(), "offline")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

func TestStatusRenderer_StorageSizes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	info := StatusInfo{
		CorpusPath:   "./policies",
		MetadataSize: 512 * 1024,
		BM25Size:     2 * 1024 * 1024,
		VectorSize:   10 * 1024 * 1024,
		TotalSize:    12*1024*1024 + 512*1024,
	}

	require.NoError(t, r.Render(info))

	output := buf.String()
	assert.Contains(t, output, "KB")
	assert.Contains(t, output, "MB")
}

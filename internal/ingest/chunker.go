// Package ingest loads the markdown policy corpus into the BM25 index,
// the vector store, and the metadata database.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/store"
)

// Chunking defaults: character-based sizing tuned for short policy
// sections.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// ChunkerOptions configures the section-aware chunker.
type ChunkerOptions struct {
	ChunkSize    int // Maximum characters per chunk
	ChunkOverlap int // Overlap carried between chunks of one section
}

// Chunker splits markdown policy documents into retrievable chunks.
type Chunker struct {
	options ChunkerOptions
}

var (
	// Matches headers: # Title through #### Title
	headerPattern = regexp.MustCompile(`(?m)^(#{1,4})\s+(.+)$`)

	// Whitespace normalization
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// NewChunker creates a chunker with the given options, applying
// defaults for zero values.
func NewChunker(opts ChunkerOptions) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{options: opts}
}

// DepartmentForFile derives the department from a policy filename
// prefix. Unrecognized prefixes map to General.
func DepartmentForFile(filename string) string {
	base := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.HasPrefix(base, "hr_"):
		return store.DeptHR
	case strings.HasPrefix(base, "it_"):
		return store.DeptIT
	case strings.HasPrefix(base, "security_"):
		return store.DeptSecurity
	case strings.HasPrefix(base, "finance_"):
		return store.DeptFinance
	default:
		return store.DeptGeneral
	}
}

// fileStem returns the filename without directory or extension,
// used as the chunk ID prefix.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// section is one header-delimited slice of a document.
type section struct {
	title string
	body  string
}

// Chunk splits one markdown file into chunks. Chunk ordinals are
// file-wide, so IDs stay stable as "<stem>_<ordinal>".
func (c *Chunker) Chunk(relPath, content string) []*store.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	department := DepartmentForFile(relPath)
	stem := fileStem(relPath)
	now := time.Now().UTC()

	var chunks []*store.Chunk
	ordinal := 0

	for _, sec := range parseSections(content) {
		title := sec.title
		if title == "" {
			title = stem
		}
		for _, piece := range c.splitSection(sec.body) {
			normalized := CleanText(piece)
			if strings.TrimSpace(normalized) == "" {
				continue
			}
			chunks = append(chunks, &store.Chunk{
				ID:         fmt.Sprintf("%s_%d", stem, ordinal),
				FilePath:   relPath,
				Department: department,
				Section:    title,
				Ordinal:    ordinal,
				Content:    normalized,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			ordinal++
		}
	}

	return chunks
}

// parseSections splits markdown into header-delimited sections.
// Content before the first header (or a header-free file) becomes a
// single synthetic root section with an empty title; Chunk titles it
// with the file stem.
func parseSections(content string) []*section {
	lines := strings.Split(content, "\n")
	var sections []*section

	current := &section{}
	var body strings.Builder

	flush := func() {
		current.body = body.String()
		if strings.TrimSpace(current.body) != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, line := range lines {
		if match := headerPattern.FindStringSubmatch(line); match != nil {
			flush()
			current = &section{title: strings.TrimSpace(match[2])}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// splitSection packs a section body into chunks of at most ChunkSize
// characters, splitting on blank-line paragraph boundaries. Successive
// chunks of the same section carry the final ChunkOverlap characters of
// the previous chunk as leading context.
func (c *Chunker) splitSection(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	if len(body) <= c.options.ChunkSize {
		return []string{body}
	}

	paragraphs := splitParagraphs(body)

	var pieces []string
	var current strings.Builder

	emit := func() {
		if current.Len() == 0 {
			return
		}
		pieces = append(pieces, current.String())
		current.Reset()
	}

	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+len(para)+2 > c.options.ChunkSize {
			emit()
			// Carry trailing context into the next chunk
			prev := pieces[len(pieces)-1]
			overlap := c.options.ChunkOverlap
			if overlap > len(prev) {
				overlap = len(prev)
			}
			if overlap > 0 {
				current.WriteString(prev[len(prev)-overlap:])
				current.WriteString("\n\n")
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	emit()

	return pieces
}

// splitParagraphs splits on blank lines, dropping empty parts.
func splitParagraphs(body string) []string {
	parts := strings.Split(body, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}

// CleanText normalizes chunk text: markdown table separator rows are
// dropped, runs of three or more newlines collapse to two, and runs of
// spaces or tabs collapse to one space.
func CleanText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isTableSeparator(line) {
			continue
		}
		kept = append(kept, line)
	}
	s = strings.Join(kept, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// isTableSeparator reports whether a line is a markdown table
// separator row such as "|---|---|" or "| :--- | ---: |".
func isTableSeparator(line string) bool {
	hasDash, hasPipe := false, false
	for _, r := range strings.TrimSpace(line) {
		switch r {
		case '-':
			hasDash = true
		case '|':
			hasPipe = true
		case ':', ' ', '\t':
		default:
			return false
		}
	}
	return hasDash && hasPipe
}

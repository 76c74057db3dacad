package agent

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/onboardqa/internal/llm"
	"github.com/Aman-CERP/onboardqa/internal/search"
)

// Retriever is the retrieval surface specialists depend on.
type Retriever interface {
	Search(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error)
}

// Specialist answers questions for one department by retrieving policy
// chunks and generating an answer grounded in them.
type Specialist struct {
	department string
	retriever  Retriever
	generator  llm.Generator
	logger     *slog.Logger
}

var _ Handler = (*Specialist)(nil)

// NewSpecialist creates a handler for one department. The General
// specialist retrieves across all departments.
func NewSpecialist(department string, retriever Retriever, generator llm.Generator, logger *slog.Logger) *Specialist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Specialist{
		department: department,
		retriever:  retriever,
		generator:  generator,
		logger:     logger,
	}
}

// Department returns the handler's department label.
func (s *Specialist) Department() string {
	return s.department
}

// Handle retrieves department context and generates an answer. A
// department-filtered search that comes back empty is retried without
// the filter before giving up.
func (s *Specialist) Handle(ctx context.Context, state *State) (*Response, error) {
	query := state.SearchQuery
	if query == "" {
		query = state.Message
	}

	results, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Response{
			Content:    noInformationMessage,
			Sources:    []Source{},
			Confidence: ConfidenceNone,
		}, nil
	}

	retrievalScore := RetrievalConfidence(results)

	answer, err := s.generator.Generate(ctx, llm.Request{
		System: systemPromptFor(s.department, state.Language),
		Prompt: buildUserPrompt(state.ConversationContext, formatContext(results), state.Message),
	})
	if err != nil {
		return nil, err
	}

	sources := collectSources(results)
	score := ResponseConfidence(retrievalScore, len(sources), len(answer))

	s.logger.Debug("specialist_response",
		slog.String("department", s.department),
		slog.Int("documents", len(results)),
		slog.Float64("confidence", score))

	return &Response{
		Content:         answer,
		Sources:         sources,
		Confidence:      LevelFor(score),
		ConfidenceScore: score,
		Followups:       followupsFor(s.department),
	}, nil
}

// retrieve runs the department-filtered search, falling back to an
// unfiltered search when the filter excludes everything relevant.
func (s *Specialist) retrieve(ctx context.Context, query string) ([]*search.SearchResult, error) {
	filter := s.department
	if s.department == "General" {
		filter = ""
	}

	results, err := s.retriever.Search(ctx, query, search.SearchOptions{Department: filter})
	if err != nil {
		return nil, err
	}
	if len(results) > 0 || filter == "" {
		return results, nil
	}

	s.logger.Debug("retrieval_filter_fallback",
		slog.String("department", s.department),
		slog.String("query", query))
	return s.retriever.Search(ctx, query, search.SearchOptions{})
}

// collectSources deduplicates result provenance preserving rank order.
func collectSources(results []*search.SearchResult) []Source {
	seen := make(map[Source]bool, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		src := Source{
			Document:   r.Chunk.FilePath,
			Section:    r.Chunk.Section,
			Department: r.Chunk.Department,
		}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

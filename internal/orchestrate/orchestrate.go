package orchestrate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/cache"
	"github.com/Aman-CERP/onboardqa/internal/escalate"
	"github.com/Aman-CERP/onboardqa/internal/lang"
	"github.com/Aman-CERP/onboardqa/internal/router"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// persistTimeout bounds the asynchronous message and log writes.
const persistTimeout = 10 * time.Second

// historyTurns is how many past exchanges flow into handler prompts.
const historyTurns = 5

// ResponseCache is the cache surface the orchestrator consumes.
type ResponseCache interface {
	Get(ctx context.Context, query string) (*cache.Hit, error)
	PutAsync(query, response string, sources []agent.Source, department string, confidence float64)
}

// Orchestrator owns the per-request pipeline and every process-scoped
// dependency behind it.
type Orchestrator struct {
	router     *router.Router
	handlers   map[string]agent.Handler
	cache      ResponseCache // nil disables response caching
	memory     *agent.ConversationMemory
	escalation *escalate.Service
	metadata   store.MetadataStore // nil disables persistence
	levels     agent.LevelThresholds
	logger     *slog.Logger
	now        func() time.Time

	// persistWG tracks in-flight async writes so Close can drain them.
	persistWG sync.WaitGroup
}

// Options wires the orchestrator's collaborators. Router and Handlers
// are required; everything else degrades gracefully when nil.
type Options struct {
	Router     *router.Router
	Handlers   map[string]agent.Handler
	Cache      ResponseCache
	Memory     *agent.ConversationMemory
	Escalation *escalate.Service
	Metadata   store.MetadataStore
	Levels     agent.LevelThresholds
	Logger     *slog.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Memory == nil {
		opts.Memory = agent.NewConversationMemory()
	}
	if opts.Escalation == nil {
		opts.Escalation = escalate.NewService()
	}
	if opts.Levels.High == 0 && opts.Levels.Medium == 0 {
		opts.Levels = agent.DefaultLevelThresholds()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		router:     opts.Router,
		handlers:   opts.Handlers,
		cache:      opts.Cache,
		memory:     opts.Memory,
		escalation: opts.Escalation,
		metadata:   opts.Metadata,
		levels:     opts.Levels,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Process answers one user message. It never returns an error: every
// failure is masked by the apology sentinel with the cause in
// Response.Error.
func (o *Orchestrator) Process(ctx context.Context, req Request) *Response {
	start := o.now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		resp := o.errorResponse("empty message", Routing{DetectedLanguage: string(lang.English)})
		resp.ConfidenceLevel = agent.ConfidenceNone
		return resp
	}

	language := lang.Detect(message)

	if cached := o.lookupCache(ctx, message, language, start); cached != nil {
		return cached
	}

	decision := o.router.Route(message)
	routing := Routing{
		PredictedDepartment:  decision.PredictedDepartment,
		PredictionConfidence: decision.PredictionConfidence,
		FinalDepartment:      decision.FinalDepartment,
		WasOverridden:        decision.WasOverridden,
		OverrideReason:       decision.OverrideReason,
		IsMultiIntent:        decision.IsMultiIntent,
		Departments:          decision.Departments,
		DetectedLanguage:     string(language),
	}

	// Retrieval runs against the routed query (Arabic queries arrive
	// already translated) with common abbreviations expanded.
	searchQuery := decision.SearchQuery
	if searchQuery == "" {
		searchQuery = message
	}
	searchQuery = lang.ExpandAbbreviations(searchQuery)

	state := &agent.State{
		UserID:              req.UserID,
		UserName:            req.Profile.Name,
		UserRole:            req.Profile.Role,
		UserDepartment:      req.Profile.Department,
		UserType:            req.Profile.Type,
		Message:             message,
		SearchQuery:         searchQuery,
		Language:            language,
		Tasks:               req.Tasks,
		ConversationContext: o.conversationContext(req),
	}

	result, err := o.execute(ctx, decision, state)
	if err != nil {
		o.logger.Error("pipeline_failed",
			slog.Int64("user_id", req.UserID),
			slog.String("department", decision.FinalDepartment),
			slog.String("error", err.Error()))
		return o.errorResponse(err.Error(), routing)
	}

	score := result.ConfidenceScore
	level := o.levels.LevelFor(score)
	if len(result.Sources) == 0 && decision.FinalDepartment != router.DeptProgress &&
		decision.FinalDepartment != store.DeptGeneral {
		level = agent.ConfidenceNone
	}

	// Progress answers come from task state, not retrieval, so the
	// no-documents rule does not apply to them.
	docsFound := len(result.Sources)
	if agentName(decision.FinalDepartment) == "progress" {
		docsFound = 1
	}
	escalation := o.escalation.Evaluate(escalate.Input{
		Query:       message,
		UserID:      req.UserID,
		Department:  decision.FinalDepartment,
		Confidence:  score,
		DocsFound:   docsFound,
		PIIDetected: escalate.ContainsPII(message),
	})

	resp := &Response{
		Content:         result.Content,
		Sources:         result.Sources,
		TaskUpdates:     result.TaskUpdates,
		Routing:         routing,
		Agent:           agentName(decision.FinalDepartment),
		ConfidenceLevel: level,
		ConfidenceScore: score,
		Followups:       result.Followups,
		TotalTimeMS:     o.now().Sub(start).Milliseconds(),
		MessageID:       uuid.NewString(),
	}
	if resp.Sources == nil {
		resp.Sources = []agent.Source{}
	}
	if resp.TaskUpdates == nil {
		resp.TaskUpdates = []agent.TaskUpdate{}
	}
	if escalation.ShouldEscalate {
		resp.Escalation = &escalation
		resp.Content += sectionRule + "⚠️ " + escalation.Message
	}

	o.memory.Add(req.UserID, message, resp.Content)
	o.persistAsync(req.UserID, message, resp, decision)
	o.cachePut(ctx, message, resp, decision)

	return resp
}

// lookupCache serves tier-1 and tier-2 hits. Cache failures are
// treated as misses.
func (o *Orchestrator) lookupCache(ctx context.Context, message string, language lang.Language, start time.Time) *Response {
	if o.cache == nil {
		return nil
	}

	hit, err := o.cache.Get(ctx, message)
	if err != nil {
		o.logger.Warn("cache_lookup_failed", slog.String("error", err.Error()))
		return nil
	}
	if hit == nil {
		return nil
	}

	score := hit.Entry.Confidence
	if hit.Type == cache.HitSemantic {
		score = hit.Similarity
	}

	o.logger.Debug("cache_hit",
		slog.String("type", hit.Type),
		slog.String("department", hit.Entry.Department))

	return &Response{
		Content:     hit.Entry.Response,
		Sources:     hit.Entry.Sources,
		TaskUpdates: []agent.TaskUpdate{},
		Routing: Routing{
			FinalDepartment:  hit.Entry.Department,
			IsCached:         true,
			CacheType:        hit.Type,
			DetectedLanguage: string(language),
		},
		Agent:           agentName(hit.Entry.Department),
		ConfidenceLevel: o.levels.LevelFor(score),
		ConfidenceScore: score,
		TotalTimeMS:     o.now().Sub(start).Milliseconds(),
		MessageID:       uuid.NewString(),
	}
}

// execute runs the handler graph: the progress handler for progress
// and general traffic, a parallel fan-out when keywords name any
// department, and a single specialist otherwise.
func (o *Orchestrator) execute(ctx context.Context, decision *router.Decision, state *agent.State) (*agent.Response, error) {
	if decision.FinalDepartment == router.DeptProgress || decision.FinalDepartment == store.DeptGeneral {
		return o.runSingle(ctx, decision.FinalDepartment, state)
	}

	// Keyword evidence forces fan-out even for one department so
	// canonical terms route deterministically.
	if decision.IsMultiIntent || o.hasKeywordDepartments(decision) {
		return o.runFanOut(ctx, decision.Departments, state)
	}

	return o.runSingle(ctx, decision.FinalDepartment, state)
}

func (o *Orchestrator) hasKeywordDepartments(decision *router.Decision) bool {
	for dept, matched := range decision.KeywordMatches {
		if dept != router.DeptProgress && len(matched) > 0 {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runSingle(ctx context.Context, department string, state *agent.State) (*agent.Response, error) {
	handler, ok := o.handlers[department]
	if !ok {
		handler = o.handlers[store.DeptGeneral]
	}
	return handler.Handle(ctx, state)
}

// runFanOut dispatches one handler per department concurrently and
// merges in the router's department order. Handler responses carry
// their own confidence; the merged score is the best section's score.
func (o *Orchestrator) runFanOut(ctx context.Context, departments []string, state *agent.State) (*agent.Response, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	responses := make(map[string]*agent.Response, len(departments))

	for _, dept := range departments {
		handler, ok := o.handlers[dept]
		if !ok {
			continue
		}
		g.Go(func() error {
			resp, err := handler.Handle(gctx, state)
			if err != nil {
				return err
			}
			mu.Lock()
			responses[dept] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeResponses(departments, responses), nil
}

// conversationContext prefers the orchestrator's own memory; a fresh
// process falls back to the caller-provided history.
func (o *Orchestrator) conversationContext(req Request) string {
	if formatted := o.memory.Context(req.UserID, historyTurns); formatted != "No previous conversation." {
		return formatted
	}
	if len(req.History) == 0 {
		return "No previous conversation."
	}

	turns := req.History
	if len(turns) > 2*historyTurns {
		turns = turns[len(turns)-2*historyTurns:]
	}
	var b strings.Builder
	for _, m := range turns {
		role := "User"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// persistAsync writes the exchange and routing log off the request
// path. Text is PII-redacted first; failures only log.
func (o *Orchestrator) persistAsync(userID int64, message string, resp *Response, decision *router.Decision) {
	if o.metadata == nil {
		return
	}

	redactedQuery := escalate.RedactPII(message)
	redactedAnswer := escalate.RedactPII(resp.Content)
	routing := resp.Routing
	agentLabel := resp.Agent
	totalTime := resp.TotalTimeMS
	language := string(decision.Language)

	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		now := o.now()
		userMsg := &store.Message{
			ID:        uuid.NewString(),
			UserID:    userID,
			Role:      "user",
			Content:   redactedQuery,
			CreatedAt: now,
		}
		assistantMsg := &store.Message{
			ID:        uuid.NewString(),
			UserID:    userID,
			Role:      "assistant",
			Content:   redactedAnswer,
			Agent:     agentLabel,
			CreatedAt: now,
		}
		for _, msg := range []*store.Message{userMsg, assistantMsg} {
			if err := o.metadata.SaveMessage(ctx, msg); err != nil {
				o.logger.Warn("message_persist_failed", slog.String("error", err.Error()))
			}
		}

		log := &store.RoutingLog{
			UserID:               userID,
			Query:                redactedQuery,
			PredictedDepartment:  routing.PredictedDepartment,
			PredictionConfidence: routing.PredictionConfidence,
			FinalDepartment:      routing.FinalDepartment,
			WasOverridden:        routing.WasOverridden,
			OverrideReason:       routing.OverrideReason,
			Language:             language,
			TotalTimeMS:          totalTime,
			CreatedAt:            now,
		}
		if err := o.metadata.SaveRoutingLog(ctx, log); err != nil {
			o.logger.Warn("routing_log_persist_failed", slog.String("error", err.Error()))
		}
	}()
}

// cachePut queues a cache write. Progress and general answers are
// user-specific (task state), so only department answers are cached.
func (o *Orchestrator) cachePut(ctx context.Context, message string, resp *Response, decision *router.Decision) {
	if o.cache == nil || resp.Error != "" {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if resp.Agent == "progress" {
		return
	}
	o.cache.PutAsync(message, resp.Content, resp.Sources, decision.FinalDepartment, resp.ConfidenceScore)
}

func (o *Orchestrator) errorResponse(cause string, routing Routing) *Response {
	return &Response{
		Content:         apologyMessage,
		Sources:         []agent.Source{},
		TaskUpdates:     []agent.TaskUpdate{},
		Routing:         routing,
		ConfidenceLevel: agent.ConfidenceLow,
		TotalTimeMS:     0,
		Error:           cause,
	}
}

// Close waits for in-flight persistence writes.
func (o *Orchestrator) Close() error {
	o.persistWG.Wait()
	return nil
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/onboardqa/internal/llm"
)

// TaskPriority orders pending tasks by urgency.
type TaskPriority int

const (
	PriorityCritical TaskPriority = iota // overdue
	PriorityHigh                         // due today or tomorrow
	PriorityMedium                       // due this week
	PriorityLow
)

// maxRecommendations caps the recommended-next-tasks list.
const maxRecommendations = 3

// progressRetrievalConfidence is fixed: the handler reads task state
// directly instead of retrieving documents.
const progressRetrievalConfidence = 0.8

// taskDependencies lists tasks that must be completed before a task is
// recommended.
var taskDependencies = map[string][]string{
	"Set up MFA on Okta":                    {"Set up laptop and accounts"},
	"Configure VPN access":                  {"Set up MFA on Okta"},
	"Install required software":             {"Set up laptop and accounts"},
	"Complete Security Awareness training":  {"Sign NDA and confidentiality agreement"},
	"Complete Data Protection training":     {"Complete Security Awareness training"},
	"Set up Expensify account":              {"Set up direct deposit"},
	"Review expense policy":                 {"Set up Expensify account"},
	"Enroll in benefits":                    {"Complete HR orientation session", "Submit W-4 and I-9 forms"},
}

// taskEstimatedTimes holds estimates for the standard onboarding tasks.
var taskEstimatedTimes = map[string]string{
	"Complete HR orientation session":       "1-2 hours",
	"Review and sign employee handbook":     "30-45 minutes",
	"Submit W-4 and I-9 forms":              "15-20 minutes",
	"Set up direct deposit":                 "10-15 minutes",
	"Enroll in benefits":                    "30-60 minutes",
	"Set up laptop and accounts":            "30-45 minutes",
	"Configure email and calendar":          "15-20 minutes",
	"Set up MFA on Okta":                    "10-15 minutes",
	"Install required software":             "20-30 minutes",
	"Configure VPN access":                  "15-20 minutes",
	"Sign NDA and confidentiality agreement": "15-20 minutes",
	"Complete Security Awareness training":  "45-60 minutes",
	"Complete Data Protection training":     "30-45 minutes",
	"Complete Phishing Prevention training": "20-30 minutes",
	"Set up Expensify account":              "10-15 minutes",
	"Review expense policy":                 "15-20 minutes",
	"Set up Concur travel profile":          "15-20 minutes",
}

const defaultEstimatedTime = "15-30 minutes"

// Recommendation is one suggested next task.
type Recommendation struct {
	TaskID        int64
	Title         string
	Reason        string
	Priority      TaskPriority
	EstimatedTime string
}

// Timeline groups pending tasks by due period.
type Timeline struct {
	Overdue  []Task
	Today    []Task
	ThisWeek []Task
	NextWeek []Task
	Later    []Task
}

// progressSystemPrompt frames the task assistant. The status sections
// are filled per request.
const progressSystemPrompt = `You are a Progress Tracking assistant helping new employees manage their onboarding tasks.
You can:
- Show the user their onboarding tasks and progress
- Provide personalized task recommendations
- Show timeline views (today, this week, next week)
- Help them understand task dependencies
- Mark tasks as complete when they report finishing something
- Highlight overdue tasks with urgency

IMPORTANT RULES:
1. Be encouraging about progress made.
2. Clearly highlight overdue tasks and their importance.
3. When recommending tasks, consider dependencies (some tasks must be done before others).
4. Provide estimated times for tasks when available.
5. Use Markdown formatting for clarity.

User Information:
- Name: %s
- Role: %s
- Department: %s

CURRENT ONBOARDING STATUS:
%s

TIMELINE VIEW:
%s

RECOMMENDED NEXT TASKS:
%s

TASK COMPLETION INSTRUCTIONS:
If the user mentions completing a task, respond with a JSON block like this at the END of your response:
` + "```json" + `
{"task_update": {"task_id": <id>, "new_status": "DONE"}}
` + "```" + `
Only include this if you're confident about which task they completed.`

// ProgressHandler manages onboarding task queries. It never retrieves
// policy documents; the task list arrives with the request.
type ProgressHandler struct {
	generator llm.Generator
	logger    *slog.Logger
	now       func() time.Time
}

var _ Handler = (*ProgressHandler)(nil)

// NewProgressHandler creates the task progress handler.
func NewProgressHandler(generator llm.Generator, logger *slog.Logger) *ProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHandler{
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Department returns the progress pseudo-department.
func (h *ProgressHandler) Department() string {
	return "Progress"
}

// Handle answers a task query: it summarizes status, builds a timeline
// and recommendations, generates the answer, and extracts any task
// status update the model reports.
func (h *ProgressHandler) Handle(ctx context.Context, state *State) (*Response, error) {
	today := dateOnly(h.now())

	timeline := h.BuildTimeline(state.Tasks)
	recommendations := h.Recommend(state.Tasks, maxRecommendations)

	system := fmt.Sprintf(progressSystemPrompt,
		state.UserName,
		orDefault(state.UserRole, "Employee"),
		orDefault(state.UserDepartment, "General"),
		formatTasksSummary(state.Tasks, today),
		formatTimeline(timeline),
		formatRecommendations(recommendations))

	prompt := fmt.Sprintf("User message: %s\n\nPlease help the user with their onboarding progress. Use Markdown formatting.",
		state.Message)

	raw, err := h.generator.Generate(ctx, llm.Request{System: system, Prompt: prompt})
	if err != nil {
		return nil, err
	}

	var updates []TaskUpdate
	if update, ok := extractTaskUpdate(raw); ok {
		updates = append(updates, update)
	}
	content := cleanResponse(raw)

	score := ResponseConfidence(progressRetrievalConfidence, len(state.Tasks), len(content))

	followups := make([]string, 0, 3)
	if len(timeline.Overdue) > 0 {
		followups = append(followups, "What overdue tasks do I have?")
	}
	if len(recommendations) > 0 {
		followups = append(followups, "What should I work on next?")
	}
	followups = append(followups, "Show me my weekly timeline")
	if len(followups) > 3 {
		followups = followups[:3]
	}

	h.logger.Debug("progress_response",
		slog.Int("tasks", len(state.Tasks)),
		slog.Int("overdue", len(timeline.Overdue)),
		slog.Bool("has_update", len(updates) > 0))

	return &Response{
		Content:         content,
		Sources:         []Source{},
		TaskUpdates:     updates,
		Confidence:      LevelFor(score),
		ConfidenceScore: score,
		Followups:       followups,
	}, nil
}

// BuildTimeline groups pending tasks by due period relative to now.
// Weeks end on Sunday.
func (h *ProgressHandler) BuildTimeline(tasks []Task) *Timeline {
	today := dateOnly(h.now())
	endOfWeek := today.AddDate(0, 0, daysToSunday(today))
	endOfNextWeek := endOfWeek.AddDate(0, 0, 7)

	timeline := &Timeline{}
	for _, t := range tasks {
		if t.Status == TaskDone {
			continue
		}
		due, ok := parseDueDate(t.DueDate)
		if !ok {
			timeline.Later = append(timeline.Later, t)
			continue
		}
		switch {
		case due.Before(today):
			timeline.Overdue = append(timeline.Overdue, t)
		case due.Equal(today):
			timeline.Today = append(timeline.Today, t)
		case !due.After(endOfWeek):
			timeline.ThisWeek = append(timeline.ThisWeek, t)
		case !due.After(endOfNextWeek):
			timeline.NextWeek = append(timeline.NextWeek, t)
		default:
			timeline.Later = append(timeline.Later, t)
		}
	}
	return timeline
}

// Recommend picks up to max pending tasks to work on next. Tasks with
// unmet dependencies are skipped; the rest sort by priority.
func (h *ProgressHandler) Recommend(tasks []Task, max int) []Recommendation {
	today := dateOnly(h.now())

	completed := make(map[string]bool)
	for _, t := range tasks {
		if t.Status == TaskDone {
			completed[t.Title] = true
		}
	}

	var recs []Recommendation
	for _, t := range tasks {
		if t.Status != TaskNotStarted && t.Status != TaskInProgress {
			continue
		}
		if !dependenciesMet(t.Title, completed) {
			continue
		}

		priority := taskPriority(t, today)
		reason := recommendationReason(t, priority, today, completed)

		estimate := taskEstimatedTimes[t.Title]
		if estimate == "" {
			estimate = defaultEstimatedTime
		}

		recs = append(recs, Recommendation{
			TaskID:        t.ID,
			Title:         t.Title,
			Reason:        reason,
			Priority:      priority,
			EstimatedTime: estimate,
		})
	}

	// Stable sort keeps input order within a priority level
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority < recs[j].Priority
	})

	if len(recs) > max {
		recs = recs[:max]
	}
	return recs
}

func dependenciesMet(title string, completed map[string]bool) bool {
	for _, dep := range taskDependencies[title] {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func taskPriority(t Task, today time.Time) TaskPriority {
	if t.Status == TaskDone {
		return PriorityLow
	}
	due, ok := parseDueDate(t.DueDate)
	if !ok {
		return PriorityMedium
	}
	days := int(due.Sub(today).Hours() / 24)
	switch {
	case days < 0:
		return PriorityCritical
	case days <= 1:
		return PriorityHigh
	case days <= 7:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func recommendationReason(t Task, priority TaskPriority, today time.Time, completed map[string]bool) string {
	switch priority {
	case PriorityCritical:
		return "⚠️ This task is overdue!"
	case PriorityHigh:
		if due, ok := parseDueDate(t.DueDate); ok && due.Equal(today) {
			return "📅 Due today"
		}
		return "⏰ Due tomorrow"
	}
	if t.Status == TaskInProgress {
		return "🔄 Already in progress - finish what you started"
	}
	var unlocks []string
	for successor, deps := range taskDependencies {
		if completed[successor] {
			continue
		}
		for _, dep := range deps {
			if dep == t.Title {
				unlocks = append(unlocks, successor)
				break
			}
		}
	}
	if len(unlocks) > 0 {
		sort.Strings(unlocks)
		if len(unlocks) > 2 {
			unlocks = unlocks[:2]
		}
		return "🔓 Completing this unlocks: " + strings.Join(unlocks, ", ")
	}
	return "📋 Quick win to build momentum"
}

// formatTasksSummary renders overall progress counts.
func formatTasksSummary(tasks []Task, today time.Time) string {
	if len(tasks) == 0 {
		return "No tasks assigned yet."
	}

	var notStarted, inProgress, completed, overdue int
	for _, t := range tasks {
		switch t.Status {
		case TaskNotStarted:
			notStarted++
		case TaskInProgress:
			inProgress++
		case TaskDone:
			completed++
		}
		if t.Status != TaskDone {
			if due, ok := parseDueDate(t.DueDate); ok && due.Before(today) {
				overdue++
			}
		}
	}

	total := len(tasks)
	pct := float64(completed) / float64(total) * 100

	lines := []string{
		fmt.Sprintf("**Overall Progress: %d/%d tasks (%.0f%%)**", completed, total, pct),
		"",
		fmt.Sprintf("✅ Completed: %d", completed),
		fmt.Sprintf("🔄 In Progress: %d", inProgress),
		fmt.Sprintf("📋 Not Started: %d", notStarted),
	}
	if overdue > 0 {
		lines = append(lines, fmt.Sprintf("⚠️ **Overdue: %d**", overdue))
	}
	return strings.Join(lines, "\n")
}

func formatTimeline(timeline *Timeline) string {
	var lines []string

	if len(timeline.Overdue) > 0 {
		lines = append(lines, "⚠️ **OVERDUE** (Needs immediate attention):")
		for _, t := range timeline.Overdue {
			lines = append(lines, fmt.Sprintf("  • %s (Was due: %s)", t.Title, t.DueDate))
		}
	}
	if len(timeline.Today) > 0 {
		lines = append(lines, "\n📅 **DUE TODAY**:")
		for _, t := range timeline.Today {
			lines = append(lines, "  • "+t.Title)
		}
	}
	if len(timeline.ThisWeek) > 0 {
		lines = append(lines, "\n📆 **THIS WEEK**:")
		for _, t := range timeline.ThisWeek {
			day := ""
			if due, ok := parseDueDate(t.DueDate); ok {
				day = due.Weekday().String()
			}
			lines = append(lines, fmt.Sprintf("  • %s (%s)", t.Title, day))
		}
	}
	if len(timeline.NextWeek) > 0 {
		lines = append(lines, "\n📅 **NEXT WEEK**:")
		for _, t := range timeline.NextWeek {
			lines = append(lines, "  • "+t.Title)
		}
	}

	if len(lines) == 0 {
		return "No urgent tasks! Great progress! 🎉"
	}
	return strings.Join(lines, "\n")
}

func formatRecommendations(recs []Recommendation) string {
	if len(recs) == 0 {
		return "All tasks completed! 🎉"
	}
	var lines []string
	for i, rec := range recs {
		lines = append(lines, fmt.Sprintf("%d. **%s** (ID: %d)", i+1, rec.Title, rec.TaskID))
		lines = append(lines, "   "+rec.Reason)
		lines = append(lines, "   ⏱️ Estimated time: "+rec.EstimatedTime)
	}
	return strings.Join(lines, "\n")
}

// taskUpdateEnvelope matches the JSON block models emit.
type taskUpdateEnvelope struct {
	TaskUpdate *TaskUpdate `json:"task_update"`
}

// extractTaskUpdate pulls a task status update from a trailing fenced
// JSON block. Malformed blocks are silently ignored.
func extractTaskUpdate(response string) (TaskUpdate, bool) {
	start := strings.Index(response, "```json")
	if start < 0 {
		return TaskUpdate{}, false
	}
	body := response[start+len("```json"):]
	end := strings.Index(body, "```")
	if end < 0 {
		return TaskUpdate{}, false
	}

	var envelope taskUpdateEnvelope
	if err := json.Unmarshal([]byte(strings.TrimSpace(body[:end])), &envelope); err != nil {
		return TaskUpdate{}, false
	}
	if envelope.TaskUpdate == nil || envelope.TaskUpdate.TaskID == 0 {
		return TaskUpdate{}, false
	}
	return *envelope.TaskUpdate, true
}

// cleanResponse strips the fenced JSON block for display.
func cleanResponse(response string) string {
	start := strings.Index(response, "```json")
	if start < 0 {
		return response
	}
	end := strings.Index(response[start+7:], "```")
	if end < 0 {
		return response
	}
	after := response[start+7+end+3:]
	return strings.TrimSpace(strings.TrimSpace(response[:start]) + after)
}

func parseDueDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysToSunday returns the days from d to the end of its week.
func daysToSunday(d time.Time) int {
	// time.Weekday has Sunday == 0; weeks here run Monday through Sunday
	wd := int(d.Weekday())
	if wd == 0 {
		return 0
	}
	return 7 - wd
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Package agent implements the specialist handlers that answer
// department questions from retrieved policy context, plus the
// progress handler for onboarding task queries.
package agent

import (
	"context"

	"github.com/Aman-CERP/onboardqa/internal/lang"
)

// ConfidenceLevel buckets a response confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceNone   ConfidenceLevel = "none"
)

// Task statuses.
const (
	TaskNotStarted = "NOT_STARTED"
	TaskInProgress = "IN_PROGRESS"
	TaskDone       = "DONE"
)

// Task is one onboarding task supplied by the caller.
type Task struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	DueDate string `json:"due_date,omitempty"` // YYYY-MM-DD, optional
}

// TaskUpdate is a status change directive parsed from a progress
// handler response.
type TaskUpdate struct {
	TaskID    int64  `json:"task_id"`
	NewStatus string `json:"new_status"`
}

// Source identifies one cited policy chunk.
type Source struct {
	Document   string `json:"document"`
	Section    string `json:"section"`
	Department string `json:"department"`
}

// State is the shared per-request state handlers consume. Handlers
// treat it as read-only.
type State struct {
	UserID         int64
	UserName       string
	UserRole       string
	UserDepartment string
	UserType       string

	// Message is the original user message.
	Message string

	// SearchQuery is the retrieval query (translated for Arabic).
	SearchQuery string

	Language lang.Language

	Tasks []Task

	// ConversationContext is the formatted recent history.
	ConversationContext string
}

// Response is one handler's answer.
type Response struct {
	Content         string
	Sources         []Source
	TaskUpdates     []TaskUpdate
	Confidence      ConfidenceLevel
	ConfidenceScore float64
	Followups       []string
}

// Handler answers queries for one department.
type Handler interface {
	// Department returns the handler's department label.
	Department() string

	// Handle produces a response for the current state.
	Handle(ctx context.Context, state *State) (*Response, error)
}

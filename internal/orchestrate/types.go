// Package orchestrate runs the request pipeline: language detection,
// cache lookup, routing, handler execution (single or fan-out), merge,
// confidence and escalation, and the asynchronous cache and log
// writes.
package orchestrate

import (
	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/escalate"
)

// apologyMessage is the sentinel returned whenever the pipeline fails.
const apologyMessage = "I apologize, but I encountered an error processing your request. Please try again or contact support."

// HistoryMessage is one prior turn supplied by the caller.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile describes the requesting user.
type Profile struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Type       string `json:"type"`
	Language   string `json:"language,omitempty"`
}

// Request is one question to answer.
type Request struct {
	UserID  int64            `json:"user_id"`
	Message string           `json:"message"`
	History []HistoryMessage `json:"history,omitempty"`
	Tasks   []agent.Task     `json:"tasks,omitempty"`
	Profile Profile          `json:"user_profile"`
}

// Routing reports how the query was routed.
type Routing struct {
	PredictedDepartment  string   `json:"predicted_department"`
	PredictionConfidence float64  `json:"prediction_confidence"`
	FinalDepartment      string   `json:"final_department"`
	WasOverridden        bool     `json:"was_overridden"`
	OverrideReason       string   `json:"override_reason,omitempty"`
	IsCached             bool     `json:"is_cached,omitempty"`
	CacheType            string   `json:"cache_type,omitempty"`
	IsMultiIntent        bool     `json:"is_multi_intent,omitempty"`
	Departments          []string `json:"departments,omitempty"`
	DetectedLanguage     string   `json:"detected_language"`
}

// Response is the outward result of one request.
type Response struct {
	Content         string                `json:"response"`
	Sources         []agent.Source        `json:"sources"`
	TaskUpdates     []agent.TaskUpdate    `json:"task_updates"`
	Routing         Routing               `json:"routing"`
	Agent           string                `json:"agent"`
	ConfidenceLevel agent.ConfidenceLevel `json:"confidence_level"`
	ConfidenceScore float64               `json:"confidence_score"`
	Followups       []string              `json:"suggested_questions,omitempty"`
	Escalation      *escalate.Decision    `json:"escalation,omitempty"`
	TotalTimeMS     int64                 `json:"total_time_ms"`
	MessageID       string                `json:"message_id,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// agentNames maps a final department to its agent label. General
// queries go to the progress agent.
var agentNames = map[string]string{
	"HR":       "hr",
	"IT":       "it",
	"Security": "security",
	"Finance":  "finance",
	"Progress": "progress",
	"General":  "progress",
}

func agentName(department string) string {
	if name, ok := agentNames[department]; ok {
		return name
	}
	return "progress"
}

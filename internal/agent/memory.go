package agent

import (
	"fmt"
	"strings"
	"sync"
)

// MaxHistoryLength bounds the per-user conversation history.
const MaxHistoryLength = 10

// contextTruncateLen caps each history line in the formatted context.
const contextTruncateLen = 200

// Exchange is one user/assistant turn.
type Exchange struct {
	UserMessage string
	Response    string
}

// ConversationMemory keeps a bounded per-user history of recent
// exchanges. Safe for concurrent use.
type ConversationMemory struct {
	mu       sync.Mutex
	history  map[int64][]Exchange
	capacity int
}

// NewConversationMemory creates an empty memory with the default
// per-user capacity.
func NewConversationMemory() *ConversationMemory {
	return NewConversationMemoryWithCapacity(MaxHistoryLength)
}

// NewConversationMemoryWithCapacity creates an empty memory keeping at
// most capacity exchanges per user. Non-positive values fall back to
// the default.
func NewConversationMemoryWithCapacity(capacity int) *ConversationMemory {
	if capacity <= 0 {
		capacity = MaxHistoryLength
	}
	return &ConversationMemory{
		history:  make(map[int64][]Exchange),
		capacity: capacity,
	}
}

// Add records one exchange for a user, evicting the oldest entry when
// the user's history is full.
func (m *ConversationMemory) Add(userID int64, userMessage, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[userID], Exchange{UserMessage: userMessage, Response: response})
	if len(h) > m.capacity {
		h = h[len(h)-m.capacity:]
	}
	m.history[userID] = h
}

// Recent returns up to n most recent exchanges for a user, oldest
// first.
func (m *ConversationMemory) Recent(userID int64, n int) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[userID]
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	out := make([]Exchange, n)
	copy(out, h[len(h)-n:])
	return out
}

// Context formats the user's recent history for prompt injection.
// Long turns are truncated so the prompt stays bounded.
func (m *ConversationMemory) Context(userID int64, n int) string {
	recent := m.Recent(userID, n)
	if len(recent) == 0 {
		return "No previous conversation."
	}

	var b strings.Builder
	for _, e := range recent {
		fmt.Fprintf(&b, "User: %s\n", truncate(e.UserMessage, contextTruncateLen))
		fmt.Fprintf(&b, "Assistant: %s\n", truncate(e.Response, contextTruncateLen))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear drops a user's history.
func (m *ConversationMemory) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, userID)
}

// truncate caps s at max runes. Byte slicing would split multi-byte
// runes in Arabic history.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

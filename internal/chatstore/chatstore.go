// Package chatstore persists assistant messages and serves conversation
// summaries for requirement classification. The default stores are
// self-contained: a memory store for tests and a JSON-file store that
// survives restarts. A database-backed implementation plugs in through the
// same interface.
package chatstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/popspot/ragengine"
)

// summaryDepth is how many recent messages feed the conversation summary.
const summaryDepth = 5

// summaryClip bounds each message's contribution to the summary.
const summaryClip = 200

// MemoryStore implements ragengine.ChatStore in memory.
type MemoryStore struct {
	mutex    sync.RWMutex
	messages map[string][]ragengine.ChatMessage
}

// NewMemoryStore creates an empty in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]ragengine.ChatMessage)}
}

// SaveAssistantMessage appends a message to its chat's history.
func (s *MemoryStore) SaveAssistantMessage(ctx context.Context, message ragengine.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.ChatID == "" {
		return fmt.Errorf("message has no chat id")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages[message.ChatID] = append(s.messages[message.ChatID], message)
	return nil
}

// ConversationSummary renders the chat's recent messages into the compact
// form the classifier consumes. An unknown chat yields an empty summary, not
// an error.
func (s *MemoryStore) ConversationSummary(ctx context.Context, chatID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mutex.RLock()
	history := s.messages[chatID]
	s.mutex.RUnlock()

	return summarize(history), nil
}

// History returns a copy of the chat's messages, oldest first.
func (s *MemoryStore) History(chatID string) []ragengine.ChatMessage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	history := s.messages[chatID]
	out := make([]ragengine.ChatMessage, len(history))
	copy(out, history)
	return out
}

// summarize joins the tail of a message history, clipping each entry so one
// long report does not crowd out the rest.
func summarize(history []ragengine.ChatMessage) string {
	if len(history) == 0 {
		return ""
	}
	start := 0
	if len(history) > summaryDepth {
		start = len(history) - summaryDepth
	}

	var b strings.Builder
	for _, message := range history[start:] {
		content := message.Content
		if runes := []rune(content); len(runes) > summaryClip {
			content = string(runes[:summaryClip]) + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", message.Role, content)
	}
	return strings.TrimRight(b.String(), "\n")
}

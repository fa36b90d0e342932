package chatstore

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/popspot/ragengine"
)

// FileStore implements ragengine.ChatStore backed by a single JSON file. It
// loads existing history on creation and rewrites the file on every save, so
// conversations survive restarts without an external database.
type FileStore struct {
	mutex    sync.RWMutex
	messages map[string][]ragengine.ChatMessage
	filePath string
	logger   Logger
}

// NewFileStore creates a file-backed chat store. A missing or unreadable
// file starts the store empty.
func NewFileStore(filePath string, logger Logger) *FileStore {
	s := &FileStore{
		messages: make(map[string][]ragengine.ChatMessage),
		filePath: filePath,
		logger:   logger,
	}
	s.loadFromFile()
	return s
}

func (s *FileStore) loadFromFile() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	file, err := os.Open(s.filePath)
	if err != nil {
		return
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(&s.messages); err != nil && s.logger != nil {
		s.logger.Error("Chat store file is unreadable, starting empty", map[string]interface{}{
			"path": s.filePath, "error": err.Error(),
		})
	}
}

// saveToFile must be called with the write lock held.
func (s *FileStore) saveToFile() {
	file, err := os.Create(s.filePath)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Chat store write failed", map[string]interface{}{
				"path": s.filePath, "error": err.Error(),
			})
		}
		return
	}
	defer file.Close()
	_ = json.NewEncoder(file).Encode(s.messages)
}

// SaveAssistantMessage appends a message and persists the store.
func (s *FileStore) SaveAssistantMessage(ctx context.Context, message ragengine.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	s.messages[message.ChatID] = append(s.messages[message.ChatID], message)
	s.saveToFile()
	s.mutex.Unlock()

	if s.logger != nil {
		s.logger.Info("Assistant message persisted", map[string]interface{}{
			"chat_id": message.ChatID,
		})
	}
	return nil
}

// ConversationSummary renders the chat's recent messages, empty for an
// unknown chat.
func (s *FileStore) ConversationSummary(ctx context.Context, chatID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mutex.RLock()
	history := s.messages[chatID]
	s.mutex.RUnlock()

	return summarize(history), nil
}

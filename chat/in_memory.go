package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

type chatState struct {
	messages      []core.Message
	participants  []core.Participant
	userCharacter string
}

// InMemoryStore is a volatile core.ChatStore implementation storing chats in
// a process local map. Messages are returned as copies to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu    sync.RWMutex
	chats map[string]*chatState
}

// NewInMemoryStore constructs an empty in-memory chat store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chats: make(map[string]*chatState)}
}

// AddMessage appends a message to a chat, creating the chat lazily. The
// message id and creation time are filled in when absent. Returns the stored
// message.
func (s *InMemoryStore) AddMessage(chatID string, msg core.Message) core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.ChatID = chatID

	st := s.chatLocked(chatID)
	st.messages = append(st.messages, msg)
	return msg
}

// SetParticipants replaces the participant list of a chat.
func (s *InMemoryStore) SetParticipants(chatID string, participants []core.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatLocked(chatID).participants = append([]core.Participant(nil), participants...)
}

// SetUserCharacter records the character the user is playing in a chat.
func (s *InMemoryStore) SetUserCharacter(chatID, characterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatLocked(chatID).userCharacter = characterID
}

// MessageCount returns the number of messages stored for a chat.
func (s *InMemoryStore) MessageCount(chatID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.chats[chatID]; ok {
		return len(st.messages)
	}
	return 0
}

// RecentMessages implements core.ChatStore. Results are oldest first; Limit
// keeps the newest messages.
func (s *InMemoryStore) RecentMessages(_ context.Context, chatID string, q core.HistoryQuery) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.chats[chatID]
	if !ok {
		return []core.Message{}, nil
	}

	filtered := make([]core.Message, 0, len(st.messages))
	for _, m := range st.messages {
		if m.Type == core.MessageTypeSystem && !q.IncludeSystem {
			continue
		}
		if q.ChapterID != "" && m.ChapterID != q.ChapterID {
			continue
		}
		if q.CharacterID != "" && m.CharacterID != q.CharacterID {
			continue
		}
		filtered = append(filtered, m)
	}

	if q.Limit > 0 && len(filtered) > q.Limit {
		filtered = filtered[len(filtered)-q.Limit:]
	}
	return filtered, nil
}

// Message implements core.ChatStore.
func (s *InMemoryStore) Message(_ context.Context, chatID, messageID string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.chats[chatID]; ok {
		for _, m := range st.messages {
			if m.ID == messageID {
				return m, nil
			}
		}
	}
	return core.Message{}, fmt.Errorf("message %s not found in chat %s", messageID, chatID)
}

// UpdateMessage implements core.ChatStore.
func (s *InMemoryStore) UpdateMessage(_ context.Context, chatID, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.chats[chatID]; ok {
		for i := range st.messages {
			if st.messages[i].ID == messageID {
				st.messages[i].Content = content
				return nil
			}
		}
	}
	return fmt.Errorf("message %s not found in chat %s", messageID, chatID)
}

// Participants implements core.ChatStore.
func (s *InMemoryStore) Participants(_ context.Context, chatID string) ([]core.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.chats[chatID]; ok {
		return append([]core.Participant(nil), st.participants...), nil
	}
	return []core.Participant{}, nil
}

// UserCharacterID implements core.ChatStore.
func (s *InMemoryStore) UserCharacterID(_ context.Context, chatID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.chats[chatID]; ok {
		return st.userCharacter, nil
	}
	return "", nil
}

// chatLocked returns the chat state, creating it if needed; caller must hold
// the write lock.
func (s *InMemoryStore) chatLocked(chatID string) *chatState {
	st, ok := s.chats[chatID]
	if !ok {
		st = &chatState{}
		s.chats[chatID] = st
	}
	return st
}

package core

import "time"

// MessageType identifies the author kind of a chat message.
type MessageType string

const (
	// MessageTypeSystem marks instruction or scaffolding messages.
	MessageTypeSystem MessageType = "system"
	// MessageTypeUser marks messages typed by the user.
	MessageTypeUser MessageType = "user"
	// MessageTypeAssistant marks messages produced by a plain assistant turn.
	MessageTypeAssistant MessageType = "assistant"
	// MessageTypeCharacter marks messages produced on behalf of a character
	// participant.
	MessageTypeCharacter MessageType = "character"
)

// Message is a single chat message as exposed by the chat-data collaborator.
// The engine treats messages as read-only except through ChatStore.UpdateMessage.
type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chat_id"`
	ChapterID   string      `json:"chapter_id,omitempty"`
	CharacterID string      `json:"character_id,omitempty"`
	Type        MessageType `json:"type"`
	Content     string      `json:"content"`
	Metadata    string      `json:"metadata,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Participant is a character enabled in a chat, as reported by the chat-data
// collaborator. Agents are attached to chats through participants.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AgentID string `json:"agent_id,omitempty"`
	Enabled bool   `json:"enabled"`
}

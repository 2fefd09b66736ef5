package core

import "context"

// HistoryQuery narrows a recent-messages fetch. Zero values mean "no filter".
type HistoryQuery struct {
	ChapterID     string
	CharacterID   string
	Limit         int
	IncludeSystem bool
}

// ChatStore is the chat-data collaborator. The engine only reads and updates
// messages through it; persistence and storage queries live outside this core.
type ChatStore interface {
	// RecentMessages returns the newest messages for a chat, oldest first,
	// narrowed by the query.
	RecentMessages(ctx context.Context, chatID string, q HistoryQuery) ([]Message, error)

	// Message fetches a single message by id.
	Message(ctx context.Context, chatID, messageID string) (Message, error)

	// UpdateMessage replaces the content of an existing message.
	UpdateMessage(ctx context.Context, chatID, messageID, content string) error

	// Participants returns the participants of a chat in display order.
	Participants(ctx context.Context, chatID string) ([]Participant, error)

	// UserCharacterID returns the id of the character the user is playing in
	// this chat, or empty when none is set.
	UserCharacterID(ctx context.Context, chatID string) (string, error)
}

// Notifier receives observability callbacks from the engine. Implementations
// must be non-blocking and must never affect execution correctness; the
// engine ignores anything a Notifier does, including panics.
type Notifier interface {
	// NodeStarted is called immediately before a node handler runs.
	NodeStarted(agentID, nodeID string)
	// NodeFinished is called after a node handler returned successfully.
	NodeFinished(agentID, nodeID string, value any)
	// WorkflowFailed is called once per failed run with the terminal error.
	WorkflowFailed(agentID string, err error)
}

// NoOpNotifier discards all notifications. Useful for tests or embedders
// that do not surface progress.
type NoOpNotifier struct{}

// NodeStarted implements Notifier.
func (NoOpNotifier) NodeStarted(string, string) {}

// NodeFinished implements Notifier.
func (NoOpNotifier) NodeFinished(string, string, any) {}

// WorkflowFailed implements Notifier.
func (NoOpNotifier) WorkflowFailed(string, error) {}

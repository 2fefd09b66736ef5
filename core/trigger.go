package core

// TriggerType enumerates the conditions under which an agent's workflow is
// executed.
type TriggerType string

const (
	// TriggerManual means the agent only runs when explicitly invoked.
	TriggerManual TriggerType = "manual"
	// TriggerBeforeUserMessage fires before a user message is committed.
	TriggerBeforeUserMessage TriggerType = "before_user_message"
	// TriggerAfterUserMessage fires after a user message is committed.
	TriggerAfterUserMessage TriggerType = "after_user_message"
	// TriggerBeforeAnyMessage fires before any message, regardless of author.
	TriggerBeforeAnyMessage TriggerType = "before_any_message"
	// TriggerAfterAnyMessage fires after any message, regardless of author.
	TriggerAfterAnyMessage TriggerType = "after_any_message"
	// TriggerBeforeCharacterMessage fires before a character response.
	TriggerBeforeCharacterMessage TriggerType = "before_character_message"
	// TriggerAfterCharacterMessage fires after a character response.
	TriggerAfterCharacterMessage TriggerType = "after_character_message"
	// TriggerAfterAllParticipants fires once every participant in a round
	// has responded.
	TriggerAfterAllParticipants TriggerType = "after_all_participants"
	// TriggerEveryXMessages fires every N counter-eligible messages.
	TriggerEveryXMessages TriggerType = "every_x_messages"
)

// DefaultMessageCountThreshold applies when an every_x_messages trigger does
// not specify its own threshold.
const DefaultMessageCountThreshold = 5

// TriggerConfig is the per-agent trigger configuration. MessageCount is only
// consulted when Type is TriggerEveryXMessages.
type TriggerConfig struct {
	Type         TriggerType `json:"type"`
	MessageCount int         `json:"message_count,omitempty"`
}

// Threshold returns the configured message-count threshold, falling back to
// DefaultMessageCountThreshold when unset.
func (c TriggerConfig) Threshold() int {
	if c.MessageCount > 0 {
		return c.MessageCount
	}
	return DefaultMessageCountThreshold
}

// TriggerContext is constructed per matched firing and passed to the workflow
// executor as the run's initial input. ParticipantID is the event's
// participant for participant-scoped triggers, else the agent's own id, so
// downstream nodes can filter context by "who is this about".
type TriggerContext struct {
	Type            TriggerType `json:"type"`
	ChatID          string      `json:"chat_id"`
	Message         *Message    `json:"message,omitempty"`
	ParticipantID   string      `json:"participant_id"`
	UserCharacterID string      `json:"user_character_id,omitempty"`
	MessageCount    int         `json:"message_count,omitempty"`
}

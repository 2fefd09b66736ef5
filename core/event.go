package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a chat lifecycle notification. The before/after pairs
// bracket message generation: "before" fires when composition starts, "after"
// fires once the message is committed to the chat.
type EventType string

const (
	// EventUserMessageBefore fires before a user message is committed.
	EventUserMessageBefore EventType = "user_message_before"
	// EventUserMessageAfter fires after a user message is committed.
	EventUserMessageAfter EventType = "user_message_after"
	// EventCharacterMessageBefore fires before a character (participant)
	// response is generated.
	EventCharacterMessageBefore EventType = "character_message_before"
	// EventCharacterMessageAfter fires after a character response is committed.
	EventCharacterMessageAfter EventType = "character_message_after"
	// EventAllParticipantsAfter fires once every participant in a round has
	// produced a response.
	EventAllParticipantsAfter EventType = "all_participants_after"
)

// EventSource distinguishes events raised by direct user action from events
// raised by an already-automated generation loop. System-sourced events are
// never matched against triggers, guaranteeing agents cannot retrigger each
// other in an uncontrolled cascade.
type EventSource string

const (
	// SourceUser marks an event caused by direct user action.
	SourceUser EventSource = "user"
	// SourceSystem marks an event raised by automated generation.
	SourceSystem EventSource = "system"
)

// Event is an immutable chat lifecycle notification published on the bus.
// One value is constructed per publish; handlers must not mutate it.
type Event struct {
	ID            string      `json:"id"`
	Type          EventType   `json:"type"`
	ChatID        string      `json:"chat_id"`
	ParticipantID string      `json:"participant_id,omitempty"`
	Message       *Message    `json:"message,omitempty"`
	MessageCount  int         `json:"message_count,omitempty"`
	Source        EventSource `json:"source"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewEvent constructs an event of the given type for a chat. Source defaults
// to SourceUser; use WithSource to mark automated origins.
func NewEvent(eventType EventType, chatID string) Event {
	return Event{
		ID:        NewID(),
		Type:      eventType,
		ChatID:    chatID,
		Source:    SourceUser,
		Timestamp: time.Now().UTC(),
	}
}

// WithSource returns a copy of the event with the given source.
func (e Event) WithSource(source EventSource) Event {
	e.Source = source
	return e
}

// WithParticipant returns a copy of the event scoped to a participant.
func (e Event) WithParticipant(participantID string) Event {
	e.ParticipantID = participantID
	return e
}

// WithMessage returns a copy of the event carrying the message in question.
func (e Event) WithMessage(msg *Message) Event {
	e.Message = msg
	return e
}

// IsSystemSourced reports whether this event originated from an automated
// generation loop rather than direct user action.
func (e Event) IsSystemSourced() bool { return e.Source == SourceSystem }

// NewID generates a new unique identifier for events, runs and requests.
func NewID() string { return uuid.NewString() }

package bus

import (
	"sync"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
)

// Handler receives a published event. Handlers run on the publisher's
// goroutine; long work should be dispatched internally.
type Handler func(core.Event)

// UnsubscribeFunc removes a previously registered handler. Safe to call more
// than once.
type UnsubscribeFunc func()

type subscription struct {
	id      uint64
	chatID  string // empty = unscoped, receives every chat's events
	handler Handler
}

// Bus is a scoped in-process event bus. Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger logging.Logger
}

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives per-delivery debug lines.
	Logger logging.Logger
}

// New constructs an empty bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{logger: opts.Logger}
}

// Subscribe registers a handler for events whose ChatID equals chatID. An
// empty chatID subscribes to all chats. The returned function removes the
// subscription.
func (b *Bus) Subscribe(handler Handler, chatID string) UnsubscribeFunc {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, chatID: chatID, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event synchronously, in registration order, to every
// subscriber whose scope matches. A handler panic is recovered so one broken
// subscriber cannot starve the rest.
func (b *Bus) Publish(event core.Event) {
	b.mu.Lock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.chatID == "" || s.chatID == event.ChatID {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()

	if len(matched) == 0 {
		b.logger.Debug("bus dropped event with no subscribers event_type=%s chat_id=%s", event.Type, event.ChatID)
		return
	}

	for _, s := range matched {
		b.invoke(s, event)
	}
}

func (b *Bus) invoke(s subscription, event core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked event_type=%s chat_id=%s panic=%v", event.Type, event.ChatID, r)
		}
	}()
	s.handler(event)
}

package domain

import "time"

type EventType string

const (
	EventMessageCreated  EventType = "message.created"
	EventMessageEdited   EventType = "message.edited"
	EventReactionChanged EventType = "message.reaction_changed"
	EventTyping          EventType = "presence.typing"
)

// Event is a realtime notification. From and To route it; only Type,
// Payload and At go over the wire.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`

	From string `json:"-"`
	To   string `json:"-"`
}

// Targets lists the users an event is delivered to, in delivery order.
func (e Event) Targets() []string {
	if e.Type == EventTyping {
		return []string{e.To}
	}
	if e.From == e.To {
		return []string{e.To}
	}
	return []string{e.To, e.From}
}

type ReactionChange struct {
	MessageID string     `json:"message_id"`
	ThreadID  string     `json:"thread_id"`
	UserID    string     `json:"user_id"`
	Reactions []Reaction `json:"reactions"`
}

type Typing struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Typing bool   `json:"typing"`
}

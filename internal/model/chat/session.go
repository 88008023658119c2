package chat

import "time"

// Session captures one page visit's conversation with a widget.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventType 区分推送给订阅者的会话事件。
type EventType string

const (
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
)

// Event is published to subscribers whenever the conversation changes.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Message   *Message  `json:"message,omitempty"`
	Typing    bool      `json:"typing,omitempty"`
}

// Snapshot 记录已随快照下发的消息 ID。订阅先于读取记录，两者之间追加的消息
// 会同时出现在快照和事件流里，用 Replayed 丢掉事件流中的那一份。
type Snapshot map[string]struct{}

// NewSnapshot indexes the transcript sent to a client on connect.
func NewSnapshot(messages []Message) Snapshot {
	s := make(Snapshot, len(messages))
	for _, m := range messages {
		s[m.ID] = struct{}{}
	}
	return s
}

// Replayed reports whether ev carries a message the snapshot already holds.
func (s Snapshot) Replayed(ev Event) bool {
	if ev.Type != EventMessage || ev.Message == nil {
		return false
	}
	_, ok := s[ev.Message.ID]
	return ok
}

package chat

import "time"

// Sender 标识一条消息的发送方。
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAgent  Sender = "ai"
	SenderSystem Sender = "system"
)

// Message is one conversation turn. Turns are only ever appended.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	RuleID    string    `json:"ruleId,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/campus-widgets/backend/internal/analysis/intent"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/typing"
)

// conversation 是单个会话的状态：只追加的消息记录、忙碌标记与订阅者。
type conversation struct {
	mu       sync.Mutex
	session  chat.Session
	persona  persona.Persona
	messages []chat.Message
	busy     bool
	queue    []string
	task     *typing.Task
	subs     map[int]chan chat.Event
	nextSub  int
	closed   bool
}

func newConversation(session chat.Session, p persona.Persona) *conversation {
	return &conversation{
		session:  session,
		persona:  p,
		messages: make([]chat.Message, 0, 16),
		subs:     make(map[int]chan chat.Event),
	}
}

func (c *conversation) appendLocked(sender chat.Sender, content string, result intent.Result) chat.Message {
	msg := chat.Message{
		ID:        uuid.NewString(),
		SessionID: c.session.ID,
		Sender:    sender,
		Content:   content,
		RuleID:    result.RuleID,
		Fallback:  result.Fallback,
		CreatedAt: time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)

	published := msg
	c.publishLocked(chat.Event{Type: chat.EventMessage, SessionID: c.session.ID, Message: &published})
	return msg
}

// publishLocked never blocks; a subscriber that falls behind loses events.
func (c *conversation) publishLocked(event chat.Event) {
	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (c *conversation) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.queue = nil
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/analysis/intent"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/typing"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrBusy            = errors.New("assistant is still typing")
)

const subscriberBuffer = 32

// Replier produces the assistant's answer for a widget.
type Replier interface {
	Reply(ctx context.Context, personaID, text string) (intent.Result, error)
}

// Config tunes session lifetime and the typing simulation.
type Config struct {
	// TTL after the last activity; zero keeps sessions until evicted by size.
	TTL time.Duration
	// MaxSessions bounds the number of live sessions; zero means unbounded.
	MaxSessions int
	// DelayScale multiplies every persona delay; zero answers immediately.
	DelayScale float64
	Clock      typing.Clock
	Random     typing.Int63n
}

// Service encapsulates conversation state management.
type Service struct {
	personas persona.Store
	replies  Replier
	sched    *typing.Scheduler
	cfg      Config
	logger   *zap.Logger

	sessions *expirable.LRU[string, *conversation]

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewService bootstraps the in-memory chat service.
func NewService(personas persona.Store, replies Replier, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		personas: personas,
		replies:  replies,
		sched:    typing.NewScheduler(cfg.Clock, logger),
		cfg:      cfg,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
	}
	s.sessions = expirable.NewLRU[string, *conversation](cfg.MaxSessions, s.onEvict, cfg.TTL)
	return s
}

func (s *Service) onEvict(id string, conv *conversation) {
	conv.close()
	s.logger.Debug("session discarded", zap.String("session", id))
}

// CreateSession provisions an anonymous session bound to a widget and seeds
// the transcript with the widget greeting.
func (s *Service) CreateSession(_ context.Context, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}

	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, ErrPersonaNotFound
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: time.Now().UTC(),
	}

	conv := newConversation(session, p)
	if p.Greeting != "" {
		conv.mu.Lock()
		conv.appendLocked(greetingSender(p), p.Greeting, intent.Result{})
		conv.mu.Unlock()
	}

	s.sessions.Add(session.ID, conv)
	s.logger.Info("session created", zap.String("session", session.ID), zap.String("persona", personaID))
	return session, nil
}

func greetingSender(p persona.Persona) chat.Sender {
	if p.GreetingFrom == string(chat.SenderSystem) {
		return chat.SenderSystem
	}
	return chat.SenderAgent
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return conv.session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	copied := make([]chat.Message, len(conv.messages))
	copy(copied, conv.messages)
	return copied, nil
}

// Typing reports whether a reply is pending for the session.
func (s *Service) Typing(_ context.Context, sessionID string) (bool, error) {
	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return false, ErrSessionNotFound
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.busy, nil
}

// Send appends a user turn and schedules the assistant reply.
//
// Blank input returns ErrEmptyMessage and leaves the transcript untouched. While a
// reply is pending, widgets with BusyReject return ErrBusy; BusyQueue widgets keep
// the turn and answer it after the pending reply.
func (s *Service) Send(_ context.Context, sessionID, text string) (chat.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	conv.mu.Lock()
	if conv.closed {
		conv.mu.Unlock()
		return chat.Message{}, ErrSessionNotFound
	}
	if conv.busy && conv.persona.Busy == persona.BusyReject {
		conv.mu.Unlock()
		return chat.Message{}, ErrBusy
	}

	msg := conv.appendLocked(chat.SenderUser, content, intent.Result{})
	if conv.busy {
		conv.queue = append(conv.queue, content)
	} else {
		conv.busy = true
		s.startReplyLocked(conv, content)
	}
	conv.mu.Unlock()

	// refresh the TTL on activity
	s.sessions.Add(sessionID, conv)

	// EndSession 或过期可能发生在 Get 与 Add 之间，Add 不能把已关闭的会话放回去
	conv.mu.Lock()
	closed := conv.closed
	conv.mu.Unlock()
	if closed {
		if cur, ok := s.sessions.Peek(sessionID); ok && cur == conv {
			s.sessions.Remove(sessionID)
		}
		return chat.Message{}, ErrSessionNotFound
	}
	return msg, nil
}

func (s *Service) startReplyLocked(conv *conversation, content string) {
	conv.publishLocked(chat.Event{Type: chat.EventTyping, SessionID: conv.session.ID, Typing: true})

	delay := typing.Delay{Min: conv.persona.Delay.Min, Max: conv.persona.Delay.Max}.
		Scale(s.cfg.DelayScale).
		Next(s.cfg.Random)

	conv.task = s.sched.Schedule(s.baseCtx, delay, func(ctx context.Context) {
		s.deliverReply(ctx, conv, content)
	})
}

func (s *Service) deliverReply(ctx context.Context, conv *conversation, content string) {
	result, err := s.replies.Reply(ctx, conv.persona.ID, content)

	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.closed {
		return
	}

	conv.publishLocked(chat.Event{Type: chat.EventTyping, SessionID: conv.session.ID, Typing: false})
	if err != nil {
		s.logger.Error("reply failed", zap.String("session", conv.session.ID), zap.Error(err))
	} else {
		conv.appendLocked(chat.SenderAgent, result.Reply, result)
	}

	if len(conv.queue) > 0 {
		next := conv.queue[0]
		conv.queue = conv.queue[1:]
		s.startReplyLocked(conv, next)
		return
	}
	conv.busy = false
	conv.task = nil
}

// Subscribe streams conversation events for a session until cancel is called
// or the session is discarded, at which point the channel is closed.
func (s *Service) Subscribe(sessionID string) (<-chan chat.Event, func(), error) {
	conv, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.closed {
		return nil, nil, ErrSessionNotFound
	}

	id := conv.nextSub
	conv.nextSub++
	ch := make(chan chat.Event, subscriberBuffer)
	conv.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			conv.mu.Lock()
			defer conv.mu.Unlock()
			if sub, ok := conv.subs[id]; ok {
				delete(conv.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

// EndSession discards a session and cancels any pending reply.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	if !s.sessions.Remove(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// Close cancels pending replies and waits for in-flight tasks.
func (s *Service) Close() {
	s.cancel()
	for _, conv := range s.sessions.Values() {
		conv.close()
	}
	s.sessions.Purge()
	s.sched.Wait()
}

package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
)

type fakeConversation struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (f *fakeConversation) Send(_ context.Context, _ string, text string) (chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return chat.Message{Sender: chat.SenderUser, Content: text}, f.sendErr
}

func (f *fakeConversation) LoadTranscript(context.Context, string) ([]chat.Message, error) {
	return []chat.Message{{Sender: chat.SenderAgent, Content: "你好！我是\"交好运\"智能助手"}}, nil
}

func jiaohaoyun(t *testing.T) persona.Persona {
	t.Helper()
	store := persona.NewMemoryStore(persona.Seed())
	p, ok := store.FindByID("jiaohaoyun")
	require.True(t, ok)
	return p
}

func newTestModel(t *testing.T, conv *fakeConversation) (Model, chan chat.Event) {
	t.Helper()
	events := make(chan chat.Event, 8)
	return NewModel(conv, jiaohaoyun(t), "s1", events), events
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestNewModelShowsGreeting(t *testing.T) {
	m, _ := newTestModel(t, &fakeConversation{})

	require.Len(t, m.Transcript(), 1)
	assert.True(t, m.Open())
	assert.Contains(t, m.View(), "交好运")
	assert.Contains(t, m.View(), "怎么查课表")
}

func TestEnterSendsInput(t *testing.T) {
	conv := &fakeConversation{}
	m, _ := newTestModel(t, conv)

	m = typeText(t, m, "学院介绍")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	result := cmd()
	assert.Equal(t, sendResultMsg{}, result)
	assert.Equal(t, []string{"学院介绍"}, conv.sent)
	assert.Empty(t, m.input.Value())
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	conv := &fakeConversation{}
	m, _ := newTestModel(t, conv)

	m = typeText(t, m, "   ")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, conv.sent)
}

func TestQuickReplyShortcut(t *testing.T) {
	conv := &fakeConversation{}
	m, _ := newTestModel(t, conv)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}, Alt: true})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"考试安排"}, conv.sent)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}, Alt: true})
	assert.Nil(t, cmd)
}

func TestEventsDriveTypingAndTranscript(t *testing.T) {
	m, _ := newTestModel(t, &fakeConversation{})

	m, cmd := update(t, m, eventMsg(chat.Event{Type: chat.EventTyping, Typing: true}))
	assert.NotNil(t, cmd)
	assert.True(t, m.Typing())
	assert.Contains(t, m.View(), "交好运正在输入...")

	reply := chat.Message{Sender: chat.SenderAgent, Content: "考试安排请关注教务处通知"}
	m, _ = update(t, m, eventMsg(chat.Event{Type: chat.EventTyping, Typing: false}))
	m, _ = update(t, m, eventMsg(chat.Event{Type: chat.EventMessage, Message: &reply}))

	assert.False(t, m.Typing())
	require.Len(t, m.Transcript(), 2)
	assert.Equal(t, reply.Content, m.Transcript()[1].Content)
}

func TestBusyStatus(t *testing.T) {
	m, _ := newTestModel(t, &fakeConversation{})

	m, _ = update(t, m, sendResultMsg{err: chatservice.ErrBusy})
	assert.Contains(t, m.View(), "交好运正在回复，请稍候")
}

func TestTogglePanel(t *testing.T) {
	m, _ := newTestModel(t, &fakeConversation{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.False(t, m.Open())
	assert.Contains(t, m.View(), "ctrl+t: 打开对话")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.True(t, m.Open())
}

func TestWaitForEventReportsClose(t *testing.T) {
	m, events := newTestModel(t, &fakeConversation{})
	close(events)

	msg := waitForEvent(events)()
	assert.Equal(t, streamClosedMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.Contains(t, m.View(), "会话已结束")
}

// Package tui is the terminal rendition of the chat widget: a toggleable panel
// with a transcript, a typing indicator, quick replies and an input line.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
)

// Conversation is the part of the chat service the widget drives.
type Conversation interface {
	Send(ctx context.Context, sessionID, text string) (chat.Message, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
}

type eventMsg chat.Event

type streamClosedMsg struct{}

type sendResultMsg struct {
	err error
}

type Model struct {
	conv      Conversation
	persona   persona.Persona
	sessionID string
	events    <-chan chat.Event

	messages []chat.Message
	typing   bool
	open     bool
	status   string
	closed   bool
	quitting bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	width    int
	height   int
}

// NewModel builds the widget for an existing session. events should come from
// the chat service's Subscribe for the same session.
func NewModel(conv Conversation, p persona.Persona, sessionID string, events <-chan chat.Event) Model {
	ti := textinput.New()
	ti.Placeholder = p.Placeholder
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	m := Model{
		conv:      conv,
		persona:   p,
		sessionID: sessionID,
		events:    events,
		open:      true,
		viewport:  viewport.New(80, 20),
		input:     ti,
		spinner:   sp,
		width:     80,
		height:    30,
	}
	if messages, err := conv.LoadTranscript(context.Background(), sessionID); err == nil {
		m.messages = messages
	}
	m.resize()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan chat.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (m Model) send(text string) tea.Cmd {
	conv, sessionID := m.conv, m.sessionID
	return func() tea.Msg {
		_, err := conv.Send(context.Background(), sessionID, text)
		return sendResultMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case eventMsg:
		switch msg.Type {
		case chat.EventTyping:
			m.typing = msg.Typing
		case chat.EventMessage:
			if msg.Message != nil {
				m.messages = append(m.messages, *msg.Message)
			}
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		m.typing = false
		m.status = "会话已结束"
		return m, nil

	case sendResultMsg:
		switch {
		case msg.err == nil, errors.Is(msg.err, chatservice.ErrEmptyMessage):
			m.status = ""
		case errors.Is(msg.err, chatservice.ErrBusy):
			m.status = m.persona.Name + "正在回复，请稍候"
		default:
			m.status = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+t":
		m.open = !m.open
		if m.open {
			m.input.Focus()
			m.refresh()
		} else {
			m.input.Blur()
		}
		return m, nil
	}

	if !m.open {
		if msg.String() == "esc" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.open = false
		m.input.Blur()
		return m, nil

	case "enter":
		text := m.input.Value()
		m.input.Reset()
		if strings.TrimSpace(text) == "" || m.closed {
			return m, nil
		}
		return m, m.send(text)

	case "alt+1", "alt+2", "alt+3", "alt+4", "alt+5", "alt+6", "alt+7", "alt+8", "alt+9":
		idx := int(msg.String()[len("alt+")] - '1')
		if idx < len(m.persona.QuickReplies) && !m.closed {
			return m, m.send(m.persona.QuickReplies[idx])
		}
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	// 标题、输入中提示、快捷回复、输入框与帮助各占若干行
	m.viewport.Width = m.width
	m.viewport.Height = m.height - 9
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.input.Width = m.width - 6
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	wrap := lipgloss.NewStyle().Width(max(m.width-2, 10))

	for _, msg := range m.messages {
		switch msg.Sender {
		case chat.SenderUser:
			b.WriteString(userStyle.Render(" 你 ") + "\n")
			b.WriteString(wrap.Render(msg.Content))
		case chat.SenderSystem:
			b.WriteString(systemStyle.Render(wrap.Render(msg.Content)))
		default:
			b.WriteString(agentStyle.Render(" "+m.persona.Name+" ") + "\n")
			b.WriteString(wrap.Render(msg.Content))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if !m.open {
		return launcherStyle.Render("💬 "+m.persona.Name) + "  " + helpStyle.Render("ctrl+t: 打开对话  q: 退出")
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.persona.Name) + orgStyle.Render(m.persona.Organization) + "\n")
	b.WriteString(m.viewport.View() + "\n")

	switch {
	case m.typing:
		b.WriteString(m.spinner.View() + dimStyle.Render(m.persona.Name+"正在输入...") + "\n")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(m.renderQuickReplies() + "\n")
	b.WriteString(inputStyle.Render(m.input.View()) + "\n")
	b.WriteString(helpStyle.Render("  Enter: 发送  Alt+数字: 快捷回复  Esc: 收起  Ctrl+C: 退出"))
	return b.String()
}

func (m Model) renderQuickReplies() string {
	if len(m.persona.QuickReplies) == 0 {
		return ""
	}
	chips := make([]string, 0, len(m.persona.QuickReplies))
	for i, reply := range m.persona.QuickReplies {
		chips = append(chips, quickReplyStyle.Render(fmt.Sprintf("%d %s", i+1, reply)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

// Transcript returns the messages shown so far.
func (m Model) Transcript() []chat.Message {
	return append([]chat.Message(nil), m.messages...)
}

// Typing reports whether the typing indicator is visible.
func (m Model) Typing() bool {
	return m.typing
}

// Open reports whether the chat panel is expanded.
func (m Model) Open() bool {
	return m.open
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Handler WebSocket会话处理器
type Handler struct {
	chatSvc      *chatservice.Service
	personaStore persona.Store
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, personaStore persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息，快捷回复与手动输入共用
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectedData is sent once after the upgrade.
type ConnectedData struct {
	Persona      string         `json:"persona"`
	Name         string         `json:"name"`
	Placeholder  string         `json:"placeholder"`
	QuickReplies []string       `json:"quickReplies"`
	Messages     []chat.Message `json:"messages"`
	Typing       bool           `json:"typing"`
}

// connection serialises writes; gorilla allows a single concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	logger    *zap.Logger
	writeMu   sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (c *connection) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	p, ok := h.personaStore.FindByID(session.PersonaID)
	if !ok {
		http.Error(w, "persona not found", http.StatusBadRequest)
		return
	}

	events, unsubscribe, err := h.chatSvc.Subscribe(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()

	conn := &connection{conn: raw, sessionID: sessionID, logger: h.logger}
	h.logger.Info("websocket connected", zap.String("session", sessionID), zap.String("persona", p.ID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	messages, _ := h.chatSvc.LoadTranscript(ctx, sessionID)
	typing, _ := h.chatSvc.Typing(ctx, sessionID)
	conn.send("connected", ConnectedData{
		Persona:      p.ID,
		Name:         p.Name,
		Placeholder:  p.Placeholder,
		QuickReplies: p.QuickReplies,
		Messages:     messages,
		Typing:       typing,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.forwardEvents(ctx, conn, events, chat.NewSnapshot(messages))
		// 会话被丢弃时主动关闭连接，结束读循环
		_ = raw.Close()
	}()
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, conn)
	}()

	h.readLoop(ctx, conn)
	cancel()
	unsubscribe()
	wg.Wait()
	h.logger.Info("websocket disconnected", zap.String("session", sessionID))
}

func (h *Handler) readLoop(ctx context.Context, conn *connection) {
	for {
		var msg inboundMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.SessionID != "" && msg.SessionID != conn.sessionID {
			conn.sendError("session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *connection, msg *inboundMessage) {
	switch msg.Type {
	case "text", "quick_reply":
		h.handleTextMessage(ctx, conn, msg.Data)
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, conn *connection, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		conn.sendError("invalid text payload")
		return
	}

	// 回复通过订阅事件推回，这里只处理错误
	_, err := h.chatSvc.Send(ctx, conn.sessionID, text.Text)
	switch {
	case err == nil, errors.Is(err, chatservice.ErrEmptyMessage):
	case errors.Is(err, chatservice.ErrBusy):
		conn.sendError(err.Error())
	case errors.Is(err, chatservice.ErrSessionNotFound):
		conn.sendError(err.Error())
	default:
		h.logger.Error("websocket send failed", zap.String("session", conn.sessionID), zap.Error(err))
		conn.sendError("internal error")
	}
}

func (h *Handler) forwardEvents(ctx context.Context, conn *connection, events <-chan chat.Event, sent chat.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if sent.Replayed(event) {
				continue
			}
			switch event.Type {
			case chat.EventTyping:
				conn.send("typing", map[string]bool{"typing": event.Typing})
			case chat.EventMessage:
				conn.send("message", event.Message)
			}
		}
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

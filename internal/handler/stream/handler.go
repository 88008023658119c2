package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	chatService "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler manages conversation events via Server-Sent Events
type Handler struct {
	chatSvc   *chatService.Service
	logger    *zap.Logger
	heartbeat time.Duration
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		logger:    logger,
		heartbeat: defaultHeartbeat,
	}
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// ReadyEvent is the first event on a stream: the transcript so far plus typing state.
type ReadyEvent struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
	Typing    bool           `json:"typing"`
}

// handleStream 将会话的 message / typing 事件推送给浏览器，直到客户端断开或会话被丢弃
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel, err := h.chatSvc.Subscribe(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	defer cancel()

	// 先订阅再读取记录，避免漏掉两者之间产生的事件
	messages, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	typing, _ := h.chatSvc.Typing(ctx, sessionID)
	sent := chat.NewSnapshot(messages)

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "ready", ReadyEvent{SessionID: sessionID, Messages: messages, Typing: typing}); err != nil {
		return
	}

	h.logger.Debug("sse stream opened", zap.String("session", sessionID))
	defer h.logger.Debug("sse stream closed", zap.String("session", sessionID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if sent.Replayed(event) {
				continue
			}
			if err := utils.SendSSEEvent(w, flusher, string(event.Type), event); err != nil {
				h.logger.Debug("sse write failed", zap.String("session", sessionID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

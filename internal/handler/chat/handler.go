package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chatService "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	replyService "github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	replySvc     *replyService.Service
	personaStore persona.Store
	logger       *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, replySvc *replyService.Service, personaStore persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:      chatSvc,
		replySvc:     replySvc,
		personaStore: personaStore,
		logger:       logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(sr chi.Router) {
		sr.Delete("/", h.handleEndSession)
		sr.Get("/messages", h.handleTranscript)
		sr.Post("/messages", h.handleSend)
	})
	r.Post("/respond", h.handleRespond)
}

type sessionResponse struct {
	Session  chat.Session   `json:"session"`
	Messages []chat.Message `json:"messages"`
}

// handleCreateSession 创建会话并返回欢迎语
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
	}

	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}

	if _, ok := h.personaStore.FindByID(payload.PersonaID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.PersonaID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), session.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Session: session, Messages: messages})
}

// handleTranscript 返回会话消息记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{Session: session, Messages: messages})
}

// handleSend 发送用户消息；回复在模拟的输入延迟之后通过 SSE / WebSocket 推送
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.chatSvc.Send(r.Context(), sessionID, payload.Content)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, message)
}

// handleEndSession 丢弃会话（对应页面离开）
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRespond 直接调用规则应答，不经过会话
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
		Message   string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	result, err := h.replySvc.Reply(r.Context(), payload.PersonaID, payload.Message)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrEmptyMessage):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrPersonaRequired),
		errors.Is(err, chatService.ErrPersonaNotFound),
		errors.Is(err, replyService.ErrUnknownPersona):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("chat request failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

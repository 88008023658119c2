package contact

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/campus-widgets/backend/internal/service/form"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

// Handler 预约表单的HTTP处理器
type Handler struct {
	formSvc *form.Service
}

// New 创建表单处理器
func New(formSvc *form.Service) *Handler {
	return &Handler{formSvc: formSvc}
}

// RegisterRoutes 注册表单路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/contact", h.handleSubmit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload form.Appointment
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.formSvc.Submit(payload)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": msg})
	case errors.Is(err, form.ErrIncomplete), errors.Is(err, form.ErrInvalidEmail):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	uploadService "github.com/zhouzirui/campus-widgets/backend/internal/service/upload"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

const (
	fileField = "file"
	// multipart 头部与边界的额外开销
	envelopeSlack = 1 << 20
)

var errMultipleFiles = errors.New("only one file can be uploaded at a time")

// Handler 作业上传的HTTP处理器
type Handler struct {
	uploadSvc *uploadService.Service
	personas  persona.Store
	logger    *zap.Logger
}

// New 创建上传处理器
func New(uploadSvc *uploadService.Service, personas persona.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uploadSvc: uploadSvc, personas: personas, logger: logger}
}

// RegisterRoutes 注册上传路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload/{personaID}", h.handleUpload)
}

// handleUpload 逐个读取 multipart 分段，只接受一个 file 字段
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	if !p.UploadEnabled {
		utils.RespondError(w, http.StatusForbidden, "upload is not available for this widget")
		return
	}

	if limit := h.uploadSvc.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+envelopeSlack)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "multipart/form-data body is required")
		return
	}

	var (
		receipt uploadService.Receipt
		found   bool
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.respondUploadError(w, err)
			return
		}

		if part.FormName() != fileField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		if found {
			_ = part.Close()
			h.respondUploadError(w, errMultipleFiles)
			return
		}

		receipt, err = h.uploadSvc.Accept(part.FileName(), part)
		_ = part.Close()
		if err != nil {
			h.respondUploadError(w, err)
			return
		}
		found = true
	}

	if !found {
		h.respondUploadError(w, uploadService.ErrNoFile)
		return
	}
	utils.RespondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) respondUploadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, uploadService.ErrTooLarge), errors.As(err, &maxErr):
		utils.RespondError(w, http.StatusRequestEntityTooLarge, uploadService.ErrTooLarge.Error())
	case errors.Is(err, uploadService.ErrNoFile), errors.Is(err, errMultipleFiles):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Warn("upload failed", zap.Error(err))
		utils.RespondError(w, http.StatusBadRequest, "invalid upload")
	}
}

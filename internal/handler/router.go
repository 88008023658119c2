package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/campus-widgets/backend/internal/config"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/contact"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/page"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/stream"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/upload"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/campus-widgets/backend/internal/middleware"
	personaModel "github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	chatService "github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	formService "github.com/zhouzirui/campus-widgets/backend/internal/service/form"
	replyService "github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	uploadService "github.com/zhouzirui/campus-widgets/backend/internal/service/upload"
	"github.com/zhouzirui/campus-widgets/backend/pkg/utils"
)

// Services bundles the core services the router exposes.
type Services struct {
	Personas personaModel.Store
	Chat     *chatService.Service
	Reply    *replyService.Service
	Form     *formService.Service
	Upload   *uploadService.Service
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.ServerConfig, svcs Services, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimitPerMin > 0 {
			api.Use(middlewarePkg.NewRateLimiter(cfg.RateLimitPerMin).Handler)
		}

		persona.New(svcs.Personas).RegisterRoutes(api)
		chat.New(svcs.Chat, svcs.Reply, svcs.Personas, logger.Named("chat")).RegisterRoutes(api)
		stream.New(svcs.Chat, logger.Named("sse")).RegisterRoutes(api)
		ws.New(svcs.Chat, svcs.Personas, logger.Named("websocket")).RegisterRoutes(api)
		contact.New(svcs.Form).RegisterRoutes(api)
		upload.New(svcs.Upload, svcs.Personas, logger.Named("upload")).RegisterRoutes(api)
		page.New(svcs.Personas).RegisterRoutes(api)
	})

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zhouzirui/campus-widgets/backend/internal/config"
	"github.com/zhouzirui/campus-widgets/backend/internal/handler"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/form"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/typing"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Debug("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	// 规则表加载失败的组件不挂载，其余组件照常启动
	seeds := persona.NewMemoryStore(persona.Seed())
	replyService, err := reply.NewService(ctx, seeds, nil, logger.Named("reply"))
	if err != nil {
		logger.Fatal("failed to initialize reply service", zap.Error(err))
	}
	personaStore := persona.NewMemoryStore(replyService.Mounted(seeds.List()))
	for _, p := range personaStore.List() {
		logger.Info("widget mounted", zap.String("persona", p.ID), zap.String("name", p.Name))
	}

	chatService := chat.NewService(personaStore, replyService, chat.Config{
		TTL:         cfg.Chat.SessionTTL,
		MaxSessions: cfg.Chat.MaxSessions,
		DelayScale:  cfg.Chat.DelayScale,
		Clock:       typing.SystemClock{},
		Random:      replyService.Random(),
	}, logger.Named("chat"))
	defer chatService.Close()

	formService, err := form.NewService(logger.Named("form"))
	if err != nil {
		logger.Fatal("failed to initialize form service", zap.Error(err))
	}
	uploadService := upload.NewService(cfg.Upload.MaxBytes, logger.Named("upload"))

	router := handler.NewRouter(cfg.Server, handler.Services{
		Personas: personaStore,
		Chat:     chatService,
		Reply:    replyService,
		Form:     formService,
		Upload:   uploadService,
	}, logger.Named("http"))

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("campus widgets backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		logger.Error("server error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
